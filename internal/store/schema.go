package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// slotsColumns holds the columns for the "slots" table.
	slotsColumns = []*schema.Column{
		{Name: "name", Type: field.TypeString},
		{Name: "data", Type: field.TypeString},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// slotsSchema holds the schema information for the "slots" table.
	slotsSchema = &schema.Table{
		Name:       slotsTable,
		Columns:    slotsColumns,
		PrimaryKey: []*schema.Column{slotsColumns[0]},
	}

	// snapshotsColumns holds the columns for the "snapshots" table.
	snapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "data", Type: field.TypeString},
	}
	// snapshotsSchema holds the schema information for the "snapshots" table.
	snapshotsSchema = &schema.Table{
		Name:       snapshotsTable,
		Columns:    snapshotsColumns,
		PrimaryKey: []*schema.Column{snapshotsColumns[0]},
	}

	// eventsColumns holds the columns for the "events" table.
	eventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "kind", Type: field.TypeString},
		{Name: "success", Type: field.TypeBool},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "summary", Type: field.TypeString, Default: ""},
		{Name: "data", Type: field.TypeString},
	}
	// eventsSchema holds the schema information for the "events" table.
	eventsSchema = &schema.Table{
		Name:       eventsTable,
		Columns:    eventsColumns,
		PrimaryKey: []*schema.Column{eventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "event_kind_sequence",
				Unique:  false,
				Columns: []*schema.Column{eventsColumns[3], eventsColumns[1]},
			},
		},
	}

	schemaTables = []*schema.Table{
		slotsSchema,
		snapshotsSchema,
		eventsSchema,
	}
)
