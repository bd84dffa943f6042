// Команда jpegcompress - сжатие JPEG через внешний движок.
package main

import "github.com/artemshloyda/jpegcompress/internal/cli"

func main() {
	cli.Execute()
}
