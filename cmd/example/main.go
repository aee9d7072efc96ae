package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aligator/blockfs"
	"github.com/spf13/afero"
)

// main is just an example main to play with blockfs.
// It formats an image in memory, fills it and walks through it.
func main() {
	image := afero.NewMemMapFs()

	fs, err := blockfs.CreateImage(image, "example.img", blockfs.Options{})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer fs.Close()

	fmt.Printf("Formatted volume '%v'\n\n", fs.VolumeID())

	files := blockfs.NewAferoFs(fs)
	for _, dir := range []string{"docs", "src"} {
		if err := files.Mkdir(dir, 0755); err != nil {
			fmt.Println("could not create directory", err)
			os.Exit(1)
		}
	}

	// Larger than one block, so it spans a chain.
	readme := strings.Repeat("hello blockfs\n", 100)
	if err := afero.WriteFile(files, "docs/readme.txt", []byte(readme), 0666); err != nil {
		fmt.Println("could not write the file", err)
		os.Exit(1)
	}
	if err := afero.WriteFile(files, "src/main.go", []byte("package main\n"), 0666); err != nil {
		fmt.Println("could not write the file", err)
		os.Exit(1)
	}

	afero.Walk(files, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Println(err)
			return err
		}
		fmt.Println(path, info.IsDir(), info.Size(), info.ModTime())
		return nil
	})

	content, err := afero.ReadFile(files, "docs/readme.txt")
	if err != nil {
		fmt.Println("could not read the file", err)
		os.Exit(1)
	}
	fmt.Printf("\nRead %d bytes, first line: %q\n", len(content), strings.SplitN(string(content), "\n", 2)[0])

	usage, err := fs.Usage()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("Used %d of %d blocks\n", usage.UsedBlocks, usage.TotalBlocks)

	if err := fs.Check(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
