// Command gdtflint validates a GDTF fixture archive and prints any
// recoverable inconsistencies it finds in rustc-style diagnostics.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/gdtf-go/gdtf"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: gdtflint <gdtf-file>")
		os.Exit(1)
	}
	archiveFile := os.Args[1]

	archive, err := os.ReadFile(archiveFile)
	if err != nil {
		log.Fatalf("failed to read %s: %v", archiveFile, err)
	}

	opened, fatal := gdtf.OpenArchive(bytes.NewReader(archive), int64(len(archive)))
	if fatal != nil {
		log.Fatalf("%s: %v", archiveFile, fatal)
	}
	description, fatal := opened.DescriptionXML()
	if fatal != nil {
		log.Fatalf("%s: %v", archiveFile, fatal)
	}
	model, problems, fatal := gdtf.ParseDescription(description)
	if fatal != nil {
		log.Fatalf("%s: %v", archiveFile, fatal)
	}

	fingerprint := opened.Fingerprint()
	fmt.Printf("%s: %q (DataVersion %s), fingerprint %s\n", archiveFile, model.Name, model.DataVersion, fingerprint)
	fmt.Printf("  %d geometries, %d DMX modes\n", model.Geometries.NodeCount(), len(model.DmxModes))

	if len(problems) == 0 {
		fmt.Println("no issues found")
		return
	}

	formatter := &gdtf.ErrorFormatter{FileName: archiveFile, Color: true}
	diags := gdtf.Diagnostics(problems)
	fmt.Printf("\nFound %d issues in %s:\n\n", len(diags), archiveFile)
	for _, diag := range diags {
		fmt.Print(formatter.Format(diag, ""))
		fmt.Println()
	}
	os.Exit(1)
}
