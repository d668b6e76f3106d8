// Command eventschema exports the canonical wire contract as JSON Schema so
// non-Go consumers can validate event payloads and the catalog file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"autoarena/server/internal/catalog"
	"autoarena/server/internal/eventlog"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "directory to write the schemas into")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schemas := map[string]*jsonschema.Schema{
		"events.schema.json":  buildEventSchema(),
		"catalog.schema.json": buildCatalogSchema(),
	}
	for name, schema := range schemas {
		if err := writeSchema(filepath.Join(outDir, name), schema); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

// buildEventSchema emits one schema covering every registered event type as
// a oneOf over the concrete payloads.
func buildEventSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}

	variants := make([]*jsonschema.Schema, 0)
	for _, prototype := range []any{
		new(eventlog.Start),
		new(eventlog.UnitsInit),
		new(eventlog.StateSnapshot),
		new(eventlog.UnitAttack),
		new(eventlog.UnitDied),
		new(eventlog.StatBuff),
		new(eventlog.EffectExpired),
		new(eventlog.ShieldApplied),
		new(eventlog.UnitStunned),
		new(eventlog.DamageOverTimeApplied),
		new(eventlog.DamageOverTimeTick),
		new(eventlog.DamageOverTimeExpired),
		new(eventlog.ManaUpdate),
		new(eventlog.SkillCast),
		new(eventlog.GoldReward),
		new(eventlog.RegenGain),
		new(eventlog.Victory),
		new(eventlog.Defeat),
		new(eventlog.End),
	} {
		variants = append(variants, reflector.Reflect(prototype))
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Arena Combat Event",
		Description: "Canonical events streamed during combat resolution. Every record carries a type tag, a gapless sequence number, and a simulation timestamp.",
		OneOf:       variants,
	}
}

func buildCatalogSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(catalog.Document))
	schema.Title = "Arena Catalog"
	schema.Description = "Validates the unit, skill, and trait definitions in catalog.yaml"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
