package main

import "github.com/vitalsync/healthimport/cmd"

func main() {
	cmd.Execute()
}
