// Command yte renders YAML templates.
package main

import "github.com/cameronsjo/yte/internal/cmd"

func main() {
	cmd.Execute()
}
