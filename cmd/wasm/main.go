//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/fingerprint"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorInvalidBundle
	ErrorProcessing
)

// scoreSimilarity compares two JSON feature bundles with the default
// weights.
// Returns: {error: number, data: {similarity, mfcc, chroma, contrast, tempo, spectral} | string}
func scoreSimilarity(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: bundleA, bundleB")
	}

	a, errResp, ok := bundleArg(args[0], "bundleA")
	if !ok {
		return errResp
	}
	b, errResp, ok := bundleArg(args[1], "bundleB")
	if !ok {
		return errResp
	}

	bd := similarity.Default().Explain(a, b)

	data := js.Global().Get("Object").New()
	data.Set("similarity", bd.Total)
	data.Set("mfcc", bd.MFCC)
	data.Set("chroma", bd.Chroma)
	data.Set("contrast", bd.Contrast)
	data.Set("tempo", bd.Tempo)
	data.Set("spectral", bd.Spectral)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// buildFingerprint hashes a JSON feature bundle.
// Returns: {error: number, data: string}
func buildFingerprint(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: bundle")
	}
	b, errResp, ok := bundleArg(args[0], "bundle")
	if !ok {
		return errResp
	}

	fp, err := fingerprint.Build(b)
	if err != nil {
		return makeErrorResponse(ErrorProcessing, fmt.Sprintf("Failed to build fingerprint: %v", err))
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", fp.Hash)
	return result
}

// bundleArg accepts a bundle either as a JSON string or as a plain object.
func bundleArg(v js.Value, name string) (*models.FeatureBundle, js.Value, bool) {
	var raw string
	switch v.Type() {
	case js.TypeString:
		raw = v.String()
	case js.TypeObject:
		raw = js.Global().Get("JSON").Call("stringify", v).String()
	default:
		return nil, makeErrorResponse(ErrorInvalidArgs, name+" must be a JSON string or an object"), false
	}

	b, err := models.DecodeFeatureBundle([]byte(raw))
	if err != nil {
		return nil, makeErrorResponse(ErrorInvalidBundle, fmt.Sprintf("%s: %v", name, err)), false
	}
	return b, js.Undefined(), true
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}
	logf("log", "🔧 SonicMatch WASM module initializing...")

	done := make(chan struct{})

	js.Global().Set("scoreSimilarity", js.FuncOf(scoreSimilarity))
	js.Global().Set("buildFingerprint", js.FuncOf(buildFingerprint))
	logf("log", "📝 scoreSimilarity and buildFingerprint registered")

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
		logf("log", "✅ wasmReady event dispatched")
	} else {
		logf("error", "❌ window object is undefined!")
	}

	logf("log", "✅ SonicMatch WASM module loaded and ready")
	<-done
}
