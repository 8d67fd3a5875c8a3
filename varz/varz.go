/*
varz creates expvar variables with package-qualified names, so two packages
can both count "hits" without colliding.  Importing it registers expvar's
handler with http.DefaultServeMux, for whatever process embeds this library
and serves HTTP.
*/
package varz

import (
	"expvar"
	"fmt"
	"runtime"
	"strings"
)

// callerPackage figures out the package name of our caller's caller with a
// loose heuristic over the function name.  Declarations in a var block come
// through an init function; strip that.
func callerPackage() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "varz.unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "varz.unknown"
	}

	name := fn.Name()
	if dot := strings.LastIndex(name, "."); dot != -1 {
		name = name[:dot]
	}
	if slash := strings.LastIndex(name, "/"); slash != -1 {
		name = name[slash+1:]
	}
	return name
}

func NewInt(name string) *expvar.Int {
	return expvar.NewInt(fmt.Sprintf("%s.%s", callerPackage(), name))
}

func NewMap(name string) *expvar.Map {
	return expvar.NewMap(fmt.Sprintf("%s.%s", callerPackage(), name))
}
