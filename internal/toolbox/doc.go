// Package toolbox holds the tool registry, the manifest derived from it and the
// dispatcher every protocol adapter calls into.
//
// Tools are registered once at startup with a name, a description, an ordered
// list of ParameterSpec values and a Func. After Seal the registry is read-only
// and safe for concurrent use. The Dispatcher binds arguments, merges declared
// defaults, runs the tool and converts its return value through the serialize
// package, so adapters only ever see JSON-safe values or an *Error.
package toolbox
