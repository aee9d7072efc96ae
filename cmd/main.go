package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/aligator/blockfs"
	"github.com/spf13/afero"
)

const usage = `usage: blockfs <command> <image> [args]

commands:
  format <image> [size in bytes] [block size]
  ls     <image> [path]
  stat   <image> <path>
  mkdir  <image> <path>
  rmdir  <image> <path>
  touch  <image> <path>
  rm     <image> <path>
  put    <image> <path>    copies stdin into the file
  cat    <image> <path>
  df     <image>
  check  <image>`

func main() {
	argsWithoutProg := os.Args[1:]
	if len(argsWithoutProg) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "blockfs: ", 0)
	if err := run(afero.NewOsFs(), os.Stdin, os.Stdout, argsWithoutProg[0], argsWithoutProg[1], argsWithoutProg[2:], logger); err != nil {
		logger.Println(err)
		os.Exit(int(blockfs.Errno(err)))
	}
}

func run(host afero.Fs, stdin io.Reader, stdout io.Writer, command, image string, args []string, logger *log.Logger) error {
	opts := blockfs.Options{Logger: logger}

	if command == "format" {
		var err error
		if len(args) > 0 {
			if opts.DiskSize, err = strconv.ParseInt(args[0], 10, 64); err != nil {
				return err
			}
		}
		if len(args) > 1 {
			if opts.BlockSize, err = strconv.Atoi(args[1]); err != nil {
				return err
			}
		}

		fs, err := blockfs.CreateImage(host, image, opts)
		if err != nil {
			return err
		}
		defer fs.Close()

		fmt.Fprintf(stdout, "formatted %s: volume %v, %d directories per root, %d files per directory\n",
			image, fs.VolumeID(), fs.MaxDirectories(), fs.MaxFiles())
		return nil
	}

	fs, err := blockfs.OpenImage(host, image, opts)
	if err != nil {
		return err
	}
	defer fs.Close()

	target := "/"
	if len(args) > 0 {
		target = args[0]
	}

	switch command {
	case "ls":
		entries, err := fs.ListAttributes(target)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Fprintf(stdout, "%-9s %8d %s %s\n", entry.Kind, entry.Size, entry.ModTime.Format("2006-01-02 15:04:05"), entry.Name)
		}
	case "stat":
		attributes, err := fs.GetAttributes(target)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %s, %d bytes, block %d\n", target, attributes.Kind, attributes.Size, attributes.StartBlock)
	case "mkdir":
		return fs.MakeDirectory(target)
	case "rmdir":
		return fs.RemoveDirectory(target)
	case "touch":
		return fs.CreateFile(target)
	case "rm":
		return fs.RemoveFile(target)
	case "put":
		file, err := blockfs.NewAferoFs(fs).Create(target)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(file, stdin)
		return err
	case "cat":
		file, err := blockfs.NewAferoFs(fs).Open(target)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(stdout, file)
		return err
	case "df":
		u, err := fs.Usage()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "block size %d, total %d, reserved %d, used %d, free %d (%d bytes)\n",
			u.BlockSize, u.TotalBlocks, u.ReservedBlocks, u.UsedBlocks, u.FreeBlocks, int64(u.FreeBlocks)*int64(u.BlockSize))
	case "check":
		if err := fs.Check(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	return nil
}
