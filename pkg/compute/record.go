package compute

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FilterRecord applies [Filter] with mask to every column of rec.
func FilterRecord(alloc memory.Allocator, rec arrow.RecordBatch, mask *array.Boolean) (arrow.RecordBatch, error) {
	return mapColumns(rec, func(col arrow.Array) (arrow.Array, error) {
		return Filter(alloc, col, mask)
	})
}

// TakeRecord applies [Take] with indices to every column of rec.
func TakeRecord(alloc memory.Allocator, rec arrow.RecordBatch, indices arrow.Array) (arrow.RecordBatch, error) {
	return mapColumns(rec, func(col arrow.Array) (arrow.Array, error) {
		return Take(alloc, col, indices)
	})
}

func mapColumns(rec arrow.RecordBatch, f func(col arrow.Array) (arrow.Array, error)) (arrow.RecordBatch, error) {
	columns := make([]arrow.Array, 0, rec.NumCols())
	defer func() {
		for _, col := range columns {
			col.Release()
		}
	}()

	rows := int64(-1)
	for i, field := range rec.Schema().Fields() {
		col, err := f(rec.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}
		columns = append(columns, col)
		rows = int64(col.Len())
	}

	if rows < 0 {
		// Without columns there is nothing to derive the row count from.
		rows = 0
	}
	return array.NewRecordBatch(rec.Schema(), columns, rows), nil
}

// ConcatenateRecords merges batches into a single record batch.
//
// The schema of the result is the union of the schemas of batches, with
// fields in the order they are first seen. Columns missing from a batch are
// filled with nulls for that batch's rows. ConcatenateRecords returns an
// error wrapping [ErrSchemaMismatch] if two batches disagree on the type of
// a field.
func ConcatenateRecords(alloc memory.Allocator, batches []arrow.RecordBatch) (arrow.RecordBatch, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("concatenate records: %w", ErrNoInput)
	}

	schema, err := UnionSchema(batches)
	if err != nil {
		return nil, err
	}

	var rows int64
	for _, batch := range batches {
		rows += batch.NumRows()
	}

	columns := make([]arrow.Array, 0, schema.NumFields())
	defer func() {
		for _, col := range columns {
			col.Release()
		}
	}()

	arrays := make([]arrow.Array, 0, len(batches))
	for _, field := range schema.Fields() {
		arrays = arrays[:0]

		var backfill []arrow.Array
		for _, batch := range batches {
			if idx := batch.Schema().FieldIndices(field.Name); len(idx) > 0 {
				arrays = append(arrays, batch.Column(idx[0]))
				continue
			}

			nulls := array.MakeArrayOfNull(alloc, field.Type, int(batch.NumRows()))
			backfill = append(backfill, nulls)
			arrays = append(arrays, nulls)
		}

		merged, err := Concatenate(alloc, arrays)
		for _, nulls := range backfill {
			nulls.Release()
		}
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}
		columns = append(columns, merged)
	}

	return array.NewRecordBatch(schema, columns, rows), nil
}

// UnionSchema returns the union of the schemas of batches, with fields in
// the order they are first seen. Fields missing from any batch are marked
// nullable. UnionSchema returns an error wrapping [ErrSchemaMismatch] if
// two batches disagree on the type of a field.
func UnionSchema(batches []arrow.RecordBatch) (*arrow.Schema, error) {
	var (
		fields []arrow.Field
		seen   = make(map[string]int)
	)

	for _, batch := range batches {
		for _, field := range batch.Schema().Fields() {
			idx, ok := seen[field.Name]
			if !ok {
				seen[field.Name] = len(fields)
				fields = append(fields, field)
				continue
			}
			if !arrow.TypeEqual(fields[idx].Type, field.Type) {
				return nil, fmt.Errorf("%w: field %s has type %s and %s", ErrSchemaMismatch, field.Name, fields[idx].Type, field.Type)
			}
			fields[idx].Nullable = fields[idx].Nullable || field.Nullable
		}
	}

	// Fields absent from some batch are backfilled with nulls.
	for i := range fields {
		for _, batch := range batches {
			if len(batch.Schema().FieldIndices(fields[i].Name)) == 0 {
				fields[i].Nullable = true
				break
			}
		}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ConformRecord returns rec rearranged to match schema: columns are placed in
// the order of schema, and fields of schema missing from rec are filled with
// nulls. ConformRecord returns an error wrapping [ErrSchemaMismatch] if rec
// has a field that schema lacks or that has a different type in schema.
//
// If rec already has schema, it is retained and returned as-is.
func ConformRecord(alloc memory.Allocator, rec arrow.RecordBatch, schema *arrow.Schema) (arrow.RecordBatch, error) {
	if rec.Schema().Equal(schema) {
		rec.Retain()
		return rec, nil
	}

	for _, field := range rec.Schema().Fields() {
		idx := schema.FieldIndices(field.Name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: field %s is not in the target schema", ErrSchemaMismatch, field.Name)
		}
		if target := schema.Field(idx[0]); !arrow.TypeEqual(target.Type, field.Type) {
			return nil, fmt.Errorf("%w: field %s has type %s and %s", ErrSchemaMismatch, field.Name, target.Type, field.Type)
		}
	}

	columns := make([]arrow.Array, 0, schema.NumFields())
	defer func() {
		for _, col := range columns {
			col.Release()
		}
	}()

	for _, field := range schema.Fields() {
		if idx := rec.Schema().FieldIndices(field.Name); len(idx) > 0 {
			col := rec.Column(idx[0])
			col.Retain()
			columns = append(columns, col)
			continue
		}
		columns = append(columns, array.MakeArrayOfNull(alloc, field.Type, int(rec.NumRows())))
	}
	return array.NewRecordBatch(schema, columns, rec.NumRows()), nil
}
