package tabular

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/termsheet-cli/internal/model"
)

type schemaFile struct {
	Schema struct {
		Fields []string `yaml:"fields"`
	} `yaml:"schema"`
}

// LoadSchema reads a field schema from a YAML file of the form
//
//	schema:
//	  fields: [ISIN, Issuer, ...]
//
// An empty path returns the built-in schema.
func LoadSchema(path string) (model.FieldSchema, error) {
	if path == "" {
		return model.DefaultFieldSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read schema %s", path)
	}

	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "tabular: parse schema %s", path)
	}

	var schema model.FieldSchema
	for _, name := range f.Schema.Fields {
		if name == "" || schema.Contains(name) {
			continue
		}
		schema = append(schema, name)
	}
	if len(schema) == 0 {
		return nil, eris.Errorf("tabular: schema %s lists no fields", path)
	}
	return schema, nil
}
