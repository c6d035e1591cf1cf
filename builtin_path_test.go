package scheme

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Builtin_Path_Join(t *testing.T) {
	ip, _ := newRT(t)
	cases := []struct {
		src, want string
	}{
		{`(path-join "a" "b" "c.scm")`, filepath.Join("a", "b", "c.scm")},
		{`(path-join "a" "" "b")`, filepath.Join("a", "b")},
		{`(path-join "a/" "../b")`, "b"},
		{`(path-join)`, ""},
	}
	for _, c := range cases {
		wantStr(t, mustEval(t, ip, c.src), c.want)
	}
}

func Test_Builtin_Path_Components(t *testing.T) {
	ip, _ := newRT(t)
	cases := []struct {
		src, want string
	}{
		{`(path-base "/x/y/file.txt")`, "file.txt"},
		{`(path-base "")`, "."},
		{`(path-dir "/x/y/file.txt")`, "/x/y"},
		{`(path-dir "file.txt")`, "."},
		{`(path-ext "archive.tar.gz")`, ".gz"},
		{`(path-ext "noext")`, ""},
		{`(path-clean "a/./b/../c//d")`, "a/c/d"},
		{`(path-clean "")`, "."},
	}
	for _, c := range cases {
		wantStr(t, mustEval(t, ip, c.src), filepath.FromSlash(c.want))
	}
}

func Test_Builtin_Path_Absolute_And_Current_Directory(t *testing.T) {
	ip, _ := newRT(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	wantStr(t, mustEval(t, ip, `(current-directory)`), wd)
	wantStr(t, mustEval(t, ip, `(path-absolute "sub/file")`), filepath.Join(wd, "sub", "file"))
	wantStr(t, mustEval(t, ip, `(path-absolute "/already/abs")`), filepath.FromSlash("/already/abs"))
}

func Test_Builtin_Path_Directory_List(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.scm", "a.scm", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	ip, _ := newRT(t)
	wantWrite(t, mustEval(t, ip, `(directory-list `+scmPath(dir)+`)`), `("a.scm" "b.scm" "c.txt" "sub")`)
	wantWrite(t, mustEval(t, ip,
		`(filter (lambda (n) (string=? (path-ext n) ".scm")) (directory-list `+scmPath(dir)+`))`),
		`("a.scm" "b.scm")`)

	missing := filepath.Join(dir, "missing")
	wantErrContains(t, evalErr(t, `(directory-list `+scmPath(missing)+`)`), UserCondition, "directory-list")
}

func Test_Builtin_Path_Environment_Variables(t *testing.T) {
	t.Setenv("SCHEME_TEST_VAR", "hello")
	ip, _ := newRT(t)
	wantStr(t, mustEval(t, ip, `(get-environment-variable "SCHEME_TEST_VAR")`), "hello")
	wantBool(t, mustEval(t, ip, `(get-environment-variable "SCHEME_TEST_SURELY_UNSET_42")`), false)
	wantStr(t, mustEval(t, ip, `(cdr (assoc "SCHEME_TEST_VAR" (get-environment-variables)))`), "hello")

	t.Setenv("SCHEME_TEST_EMPTY", "")
	wantStr(t, mustEval(t, ip, `(get-environment-variable "SCHEME_TEST_EMPTY")`), "")
}
