// builtin_time.go
//
// Builtins surfaced:
//  1. current-time() -> integer seconds since the Unix epoch
//  2. current-milliseconds() -> integer
//  3. runtime() -> flonum seconds since the interpreter started
//  4. current-jiffy() / jiffies-per-second()
//  5. sleep(ms) -> void
//  6. time-format-rfc3339(seconds) -> string
//
// Conventions:
//   - Names follow Scheme convention (kebab-case); docs are docstring-style.
//   - Uses the public registration API only.
package scheme

import (
	"time"
)

func registerTimeBuiltins(ip *Interpreter) {
	start := time.Now()

	// current-time() -> Int
	ip.RegisterNative("current-time", nil, KInteger, func(_ *Interpreter, _ []Value) Value {
		return Int(time.Now().Unix())
	})
	setBuiltinDoc(ip, "current-time", `Current wall-clock time in seconds since the Unix epoch.

Returns:
	exact integer`)

	// current-milliseconds() -> Int
	ip.RegisterNative("current-milliseconds", nil, KInteger, func(_ *Interpreter, _ []Value) Value {
		return Int(time.Now().UnixMilli())
	})
	setBuiltinDoc(ip, "current-milliseconds", `Current wall-clock time in milliseconds since the Unix epoch.

Returns:
	exact integer`)

	// runtime() -> Real
	ip.RegisterNative("runtime", nil, KNumber, func(_ *Interpreter, _ []Value) Value {
		return Float(time.Since(start).Seconds())
	})
	setBuiltinDoc(ip, "runtime", `Seconds elapsed since this interpreter was created.

Returns:
	flonum`)

	ip.RegisterNative("current-jiffy", nil, KInteger, func(_ *Interpreter, _ []Value) Value {
		return Int(int64(time.Since(start) / time.Microsecond))
	})
	ip.RegisterNative("jiffies-per-second", nil, KInteger, func(_ *Interpreter, _ []Value) Value {
		return Int(int64(time.Second / time.Microsecond))
	})

	// sleep(ms) -> void
	ip.RegisterNative("sleep", params(arg("ms", KIndex)), KAny, func(_ *Interpreter, a []Value) Value {
		time.Sleep(time.Duration(toIndex(a[0])) * time.Millisecond)
		return Void
	})
	setBuiltinDoc(ip, "sleep", `Pause execution for a number of milliseconds.

Params:
	ms: index, milliseconds to sleep`)

	// time-format-rfc3339(seconds) -> String
	ip.RegisterNative("time-format-rfc3339", params(arg("seconds", KInteger)), KString, func(_ *Interpreter, a []Value) Value {
		secs, _ := numericInt64(a[0])
		return Str(time.Unix(secs, 0).UTC().Format(time.RFC3339))
	})
}
