// Command pdfunlock removes password protection from a PDF file using a
// local copy of the codec module.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	pdfunlock "github.com/logicossoftware/go-pdfunlock"
)

var pdfSignature = []byte("%PDF")

func main() {
	var inPath, outPath, password, modulePath, moduleURL string
	var validate, verbose bool
	flag.StringVar(&inPath, "in", "", "input PDF file")
	flag.StringVar(&outPath, "out", "", "output PDF file")
	flag.StringVar(&password, "password", "", "document password")
	flag.StringVar(&modulePath, "module", "", "codec module file (.wasm, .wasm.zst, .wasm.lz4, .wasm.br)")
	flag.StringVar(&moduleURL, "module-url", "", "codec module URL (alternative to -module)")
	flag.BoolVar(&validate, "validate", false, "validate the output with pdfcpu before writing")
	flag.BoolVar(&verbose, "verbose", false, "debug logging")
	flag.Parse()

	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if inPath == "" || outPath == "" {
		log.Fatal("-in and -out are required")
	}

	input, err := os.ReadFile(inPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	if !bytes.HasPrefix(input, pdfSignature) {
		log.Fatalf("%s is not a PDF file", inPath)
	}

	opts := []pdfunlock.Option{pdfunlock.WithLogger(log)}
	switch {
	case modulePath != "":
		opts = append(opts, pdfunlock.WithModuleFile(modulePath))
	case moduleURL != "":
		opts = append(opts, pdfunlock.WithModuleURL(moduleURL))
	default:
		log.Fatal("-module or -module-url is required")
	}

	ctx := context.Background()
	rt := pdfunlock.New(opts...)
	defer rt.Close(ctx)

	out, err := rt.RemovePassword(ctx, input, password)
	switch {
	case errors.Is(err, pdfunlock.ErrPassword):
		log.Fatal("incorrect or missing password")
	case err != nil:
		log.Fatalf("remove password: %v", err)
	}

	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		log.Fatalf("write output: %v", err)
	}
	if validate {
		conf := model.NewDefaultConfiguration()
		if err := api.ValidateFile(outPath, conf); err != nil {
			log.Fatalf("output failed validation: %v", err)
		}
		log.Info("output validated")
	}
	log.WithField("bytes", len(out)).Infof("wrote %s", outPath)
}
