package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// IDRecord decodes the Id column of a SOQL result row.
type IDRecord struct {
	ID string `json:"Id" salesforce:"Id"`
}

// FindIDByReference queries the given SObject for a record whose reference
// field equals ref. Returns "" if no record matches.
func FindIDByReference(ctx context.Context, c Client, sObjectName, refField, ref string) (string, error) {
	soql := fmt.Sprintf(
		"SELECT Id FROM %s WHERE %s = '%s' LIMIT 1",
		sObjectName, refField, escapeSoql(ref),
	)

	var records []IDRecord
	if err := c.Query(ctx, soql, &records); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: find %s by reference %s", sObjectName, ref))
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].ID, nil
}

// CreateMeteringPoint creates a new metering point record and returns the new
// Salesforce ID. The reference field must be present and non-empty.
func CreateMeteringPoint(ctx context.Context, c Client, sObjectName, refField string, fields map[string]any) (string, error) {
	ref, _ := fields[refField].(string)
	if ref == "" {
		return "", eris.New(fmt.Sprintf("sf: %s is required", refField))
	}
	id, err := c.InsertOne(ctx, sObjectName, fields)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: create metering point %s", ref))
	}
	return id, nil
}

// UpdateMeteringPoint updates an existing metering point record with the given fields.
func UpdateMeteringPoint(ctx context.Context, c Client, sObjectName, id string, fields map[string]any) error {
	if id == "" {
		return eris.New("sf: record id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, sObjectName, id, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update metering point %s", id))
	}
	return nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
