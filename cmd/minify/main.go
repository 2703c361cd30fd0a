// Command minify writes minified copies of the templates and static assets
// into dist/, which the server prefers in production.
//
//	go run ./cmd/minify                 # templates/ and static/ -> dist/
//	go run ./cmd/minify -input=a.css -output=b.css -type=css
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
}

func main() {
	var (
		inputFile  = flag.String("input", "", "Input file path (single file mode)")
		outputFile = flag.String("output", "", "Output file path (single file mode)")
		fileType   = flag.String("type", "", "File type for single file mode (css, js or html)")
		outDir     = flag.String("out", "dist", "Output directory for tree mode")
	)
	flag.Parse()

	m := newMinifier()

	if *inputFile != "" || *outputFile != "" {
		if *inputFile == "" || *outputFile == "" || *fileType == "" {
			log.Fatal("Usage: go run ./cmd/minify -input=<file> -output=<file> -type=<css|js|html>")
		}
		mediaType, ok := mediaTypes["."+strings.ToLower(*fileType)]
		if !ok {
			log.Fatalf("Unsupported file type: %s (supported: css, js, html)", *fileType)
		}
		if _, err := minifyFile(m, *inputFile, *outputFile, mediaType); err != nil {
			log.Fatalf("Failed to minify %s: %v", *inputFile, err)
		}
		fmt.Printf("Successfully minified %s -> %s\n", *inputFile, *outputFile)
		return
	}

	for _, dir := range []string{"templates", "static"} {
		n, err := minifyTree(m, dir, filepath.Join(*outDir, dir))
		if err != nil {
			log.Fatalf("Error minifying %s: %v", dir, err)
		}
		fmt.Printf("%s: %d files\n", dir, n)
	}
	fmt.Printf("Minified files are in the %q directory\n", *outDir)
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return m
}

// minifyTree minifies every html, css and js file under src into the same
// relative path under dst. Other files are copied as-is.
func minifyTree(m *minify.M, src, dst string) (int, error) {
	count := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return copyFile(path, target)
		}
		saved, err := minifyFile(m, path, target, mediaType)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("  %s (-%d bytes)\n", rel, saved)
		count++
		return nil
	})
	return count, err
}

// minifyFile writes the minified form of srcPath to dstPath and returns how
// many bytes it saved.
func minifyFile(m *minify.M, srcPath, dstPath, mediaType string) (int, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return 0, err
	}
	minified, err := m.Bytes(mediaType, src)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dstPath, minified, 0644); err != nil {
		return 0, err
	}
	return len(src) - len(minified), nil
}

func copyFile(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(dstPath, data, 0644)
}
