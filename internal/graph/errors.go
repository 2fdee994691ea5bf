package graph

import (
	"fmt"

	"github.com/robot9706/corert/internal/metadata"
)

// InvalidReferenceError reports a malformed method reference encountered at
// node construction. A missing dependency would silently corrupt the image,
// so this is fatal to the whole build, never a per-node skip.
type InvalidReferenceError struct {
	Key    metadata.MethodKey
	Detail string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid method reference %s: %s", e.Key, e.Detail)
}

// SignatureResolutionError reports a method reference whose generic
// instantiation cannot be interpreted in its signature context, e.g. a
// placeholder naming a generic parameter that is not in scope. Fatal.
type SignatureResolutionError struct {
	Key     metadata.MethodKey
	Context metadata.SignatureContext
	Arg     string
}

func (e *SignatureResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve signature for %s: instantiation argument %q not in scope of context %s",
		e.Key, e.Arg, e.Context)
}
