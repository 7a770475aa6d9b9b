package main

import "github.com/997R8V10/aviation-calc-util/cmd/avpkg/internal"

func main() {
	internal.Execute()
}
