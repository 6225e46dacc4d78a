package service

import (
	"bytes"
	_ "embed"

	"github.com/tdewolff/minify/v2/js"
)

//go:embed addrtracer.js
var addressTracer []byte

var addressTracerMinified []byte

func init() {
	// we need to minify the tracer script because we can not put a
	// multi-line string in a JSON value
	minified := new(bytes.Buffer)
	err := js.Minify(nil, minified, bytes.NewReader(addressTracer), nil)
	if err != nil {
		panic(err)
	}
	addressTracerMinified = bytes.TrimSuffix(
		bytes.TrimPrefix(minified.Bytes(), []byte("var tracer=")),
		[]byte(";"),
	)
}
