package model

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"workblix/internal/domain"
)

//go:embed schema/cvdata.schema.json
var cvDataSchema []byte

var cvDataSchemaLoader = gojsonschema.NewBytesLoader(cvDataSchema)

// ValidateMap validates a generic map against the cvdata.schema.json document.
func ValidateMap(m map[string]interface{}) error {
	docLoader := gojsonschema.NewGoLoader(m)

	res, err := gojsonschema.Validate(cvDataSchemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if res.Valid() {
		return nil
	}
	// collect errors
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}
