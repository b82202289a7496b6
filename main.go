package main

import "drive-media-compressor/cmd"

func main() {
	cmd.Execute()
}
