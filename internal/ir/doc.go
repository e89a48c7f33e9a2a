// Package ir models the control-flow intermediate representation that the
// calling-convention layer instruments. A Program is an arena that owns
// functions and issues opaque statement handles; all bookkeeping elsewhere in
// the decompiler keys on those handles, never on pointers, so IR nodes can be
// relocated or serialized without dangling references.
package ir
