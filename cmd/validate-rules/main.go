package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/telearc/archive-console/internal/models"
)

// Checks rule files before they are imported with `console rules -import`.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("❌ Failed to read %s: %v\n", path, err)
			failed = true
			continue
		}

		var file models.RuleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			fmt.Printf("❌ Invalid YAML in %s: %v\n", path, err)
			failed = true
			continue
		}
		if len(file.Rules) == 0 {
			fmt.Printf("❌ %s contains no rules\n", path)
			failed = true
			continue
		}

		ok := true
		for i := range file.Rules {
			if err := file.Rules[i].Validate(); err != nil {
				fmt.Printf("❌ %s rule %d (%s): %v\n", path, i+1, file.Rules[i].Name, err)
				ok = false
			}
		}
		if ok {
			fmt.Printf("✅ %s: %d valid rules\n", path, len(file.Rules))
		} else {
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}
