// Package trace prints advisory decision lines (classification outcomes,
// code accept/reject, guard findings). Output is for operators reading the
// listener console; nothing reads it back.
package trace

import "fmt"

var Enabled bool

func Printf(format string, args ...any) {
	if !Enabled {
		return
	}
	fmt.Printf("trace: "+format+"\n", args...)
}
