// modules.go: file loading and the require cache
//
// OVERVIEW
// --------
// Scheme programs are split across files with two forms:
//
//	(load "path")     ; read and evaluate every form, every time
//	(require "name")  ; same, but at most once per interpreter
//
// Both evaluate the file's forms at top level of the target environment
// (Global for the public API), one form at a time, so a file may define
// macros used by its later forms. Loads are scheduled on the running machine
// (see machine.load in interpreter_exec.go), which means continuations and
// handlers work across file boundaries.
//
// Resolution
// ----------
//   - http(s): absolute URLs only. A path without an extension gets ".scm".
//     The canonical key is the full URL.
//   - Filesystem: spec is tried relative to the directory of the importing
//     file (when loading from a file), then the working directory, then each
//     root of Config.SearchPath. Without an extension, "spec.scm" is tried
//     before "spec". The canonical key is the cleaned absolute path.
//
// Cycle detection
// ---------------
// ip.loadStack holds the canonical keys of the files currently loading. A
// require that reaches a module still in the modLoading state fails with
// "require cycle detected: a -> b -> a". When a top-level run fails, every
// in-progress record is dropped (abortLoads) so the module can be required
// again after the cause is fixed.
//
// PUBLIC API (this file)
// ----------------------
//   - (*Interpreter).Modules() []ModuleInfo
//   - DefaultModuleExt
package scheme

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultModuleExt is appended to extensionless specs.
const DefaultModuleExt = ".scm"

// ModuleInfo describes one required module.
type ModuleInfo struct {
	Name     string // canonical path or URL
	Display  string // short name (basename without extension)
	Loaded   bool   // false while the module is still running
	LoadedAt time.Time
}

// Modules lists required modules sorted by canonical name.
func (ip *Interpreter) Modules() []ModuleInfo {
	out := make([]ModuleInfo, 0, len(ip.modules))
	for canon, rec := range ip.modules {
		out = append(out, ModuleInfo{
			Name:     canon,
			Display:  prettySpec(canon),
			Loaded:   rec.state == modLoaded,
			LoadedAt: rec.at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

//// END_OF_PUBLIC

type modState int

const (
	modLoading modState = iota
	modLoaded
)

type moduleRec struct {
	state modState
	src   string
	at    time.Time
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// startLoad records canon as loading and pushes it on the load stack.
func (ip *Interpreter) startLoad(canon, src string) {
	ip.loadStack = append(ip.loadStack, canon)
	if _, ok := ip.modules[canon]; !ok {
		ip.modules[canon] = &moduleRec{state: modLoading, src: src}
	}
}

// finishLoad pops canon and marks it loaded.
func (ip *Interpreter) finishLoad(canon string) {
	for i := len(ip.loadStack) - 1; i >= 0; i-- {
		if ip.loadStack[i] == canon {
			ip.loadStack = append(ip.loadStack[:i], ip.loadStack[i+1:]...)
			break
		}
	}
	if rec, ok := ip.modules[canon]; ok && rec.state == modLoading {
		rec.state = modLoaded
		rec.at = time.Now()
	}
	ip.log.WithField("module", canon).Debug("load: done")
}

// abortLoads forgets every module that did not finish.
func (ip *Interpreter) abortLoads() {
	if len(ip.loadStack) == 0 {
		return
	}
	for _, canon := range ip.loadStack {
		if rec, ok := ip.modules[canon]; ok && rec.state == modLoading {
			delete(ip.modules, canon)
		}
	}
	ip.log.WithFields(logrus.Fields{"aborted": strings.Join(ip.loadStack, ", ")}).Debug("load: aborted")
	ip.loadStack = nil
}

// joinCyclePath renders the import chain from the first occurrence of canon.
func joinCyclePath(stack []string, canon string) string {
	start := 0
	for i, s := range stack {
		if s == canon {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(stack)-start+1)
	for _, s := range stack[start:] {
		parts = append(parts, prettySpec(s))
	}
	parts = append(parts, prettySpec(canon))
	return strings.Join(parts, " -> ")
}

// resolveAndFetch maps spec to its canonical key and source text.
func resolveAndFetch(spec, importer string, searchPath []string) (string, string, error) {
	if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
		u, err := url.Parse(spec)
		if err != nil {
			return "", "", fmt.Errorf("invalid module url: %w", err)
		}
		if path.Ext(u.Path) == "" {
			u.Path = strings.TrimSuffix(u.Path, "/") + DefaultModuleExt
		}
		canon := u.String()
		src, err := httpFetch(canon)
		return canon, src, err
	}

	canon, err := resolveFS(spec, importer, searchPath)
	if err != nil {
		return "", "", err
	}
	b, err := os.ReadFile(canon)
	if err != nil {
		return "", "", fmt.Errorf("cannot read %s: %w", spec, err)
	}
	return canon, string(b), nil
}

func resolveFS(spec, importer string, searchPath []string) (string, error) {
	try := func(base string) (string, bool) {
		var cands []string
		p := spec
		if base != "" {
			p = filepath.Join(base, spec)
		}
		if filepath.Ext(spec) == "" {
			cands = append(cands, p+DefaultModuleExt)
		}
		cands = append(cands, p)
		for _, c := range cands {
			if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
				abs, _ := filepath.Abs(c)
				return filepath.Clean(abs), true
			}
		}
		return "", false
	}

	if filepath.IsAbs(spec) {
		if p, ok := try(""); ok {
			return p, nil
		}
		return "", fmt.Errorf("file not found: %s", spec)
	}

	var bases []string
	if importer != "" && !strings.Contains(importer, "://") {
		bases = append(bases, filepath.Dir(importer))
	}
	if cwd, err := os.Getwd(); err == nil {
		bases = append(bases, cwd)
	}
	for _, root := range searchPath {
		if root != "" {
			bases = append(bases, root)
		}
	}
	for _, b := range bases {
		if p, ok := try(b); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("file not found: %s", spec)
}

func httpFetch(canon string) (string, error) {
	resp, err := httpClient.Get(canon)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: http %d", canon, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// prettySpec returns a short display name for a canonical key.
func prettySpec(s string) string {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		base := path.Base(u.Path)
		if name := strings.TrimSuffix(base, path.Ext(base)); name != "" {
			return name
		}
		return base
	}
	base := filepath.Base(s)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return base
}
