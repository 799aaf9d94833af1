// Command catrust-demo is a small runnable walkthrough of a pure schema
// rename: it builds a Person schema and a Human schema related by a
// rename-only Mapping, inserts a row, pushes it forward with Σ, pulls it
// back with Δ, and prints both instances — demonstrating that a pure
// rename round-trips losslessly.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/engine"
	"github.com/lychee-technology/catrust/internal/migrate"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	cfg := catrust.DefaultConfig()
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	e, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building engine: %v\n", err)
		os.Exit(1)
	}

	source, target, mapping := buildRenameScenario()

	sourceInstance := catrust.NewInstance(source)
	id, err := sourceInstance.Insert("Person", catrust.EntityData{
		Attrs: map[catrust.AttrName]catrust.Value{"fullName": catrust.StringValue("Ada Lovelace")},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inserting row: %v\n", err)
		os.Exit(1)
	}

	pushed, notes := e.Sigma(mapping, sourceInstance)
	printNotes("sigma", notes)

	row, ok := pushed.Get("Human", id)
	if !ok {
		fmt.Fprintln(os.Stderr, "expected pushed row to exist")
		os.Exit(1)
	}
	fmt.Printf("after sigma: Human#%d displayName=%q\n", id, row.Attrs["displayName"].Str)

	pulled, notes := e.Delta(mapping, pushed)
	printNotes("delta", notes)

	back, ok := pulled.Get("Person", id)
	if !ok {
		fmt.Fprintln(os.Stderr, "expected pulled-back row to exist")
		os.Exit(1)
	}
	fmt.Printf("after delta round trip: Person#%d fullName=%q\n", id, back.Attrs["fullName"].Str)

	cmds, err := e.DeploySchema("postgres", target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploying schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n-- postgres DDL for the target schema --")
	for _, cmd := range cmds {
		fmt.Println(cmd.Text)
	}
}

func buildRenameScenario() (*catrust.Schema, *catrust.Schema, *catrust.Mapping) {
	source := catrust.NewSchema()
	must(source.AddNode("Person"))
	must(source.AddAttribute("fullName", "Person", catrust.SortString))

	target := catrust.NewSchema()
	must(target.AddNode("Human"))
	must(target.AddAttribute("displayName", "Human", catrust.SortString))

	mapping := catrust.NewMapping(source, target)
	must(mapping.MapNode("Person", "Human"))
	must(mapping.MapAttrDirect("fullName", "displayName"))

	return source, target, mapping
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "building demo schema: %v\n", err)
		os.Exit(1)
	}
}

func printNotes(step string, notes []migrate.MigrationNote) {
	for _, n := range notes {
		fmt.Printf("%s note: %s\n", step, n.String())
	}
}
