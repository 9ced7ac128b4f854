// Package core provides the bronze-to-silver incremental load engine.
//
// This package contains all domain logic independent of any transport layer.
// It can be driven by the CLI, the HTTP trigger, the watch loop or tests
// without modification.
//
// # Architecture
//
// The package is organized around a few collaborators:
//
//   - Contracts: declarative schemas registered via [Register], one per silver
//     table. Concrete contracts live in the contracts subpackage.
//   - Validation: [Validate] partitions a sheet's rows into valid and invalid.
//   - Schema: [SchemaManager] creates a silver table on first sight.
//   - Load: [Loader] bulk-inserts valid rows in one transaction.
//   - Ledger: [Ledger] records (source, table, row count) triples and supplies
//     the batch cursor.
//   - Orchestration: [Orchestrator] walks the batches after the cursor.
//
// # Contract Registry
//
// Contracts are registered at init time:
//
//	core.Register(core.Contract{
//	    Table: "sales_data",
//	    Extra: core.ExtraPermissive,
//	    Fields: []core.FieldSpec{
//	        {Name: "order_id", Type: core.FieldInteger, Checks: []core.Check{core.NonNegative()}},
//	        {Name: "region", Type: core.FieldText, Checks: []core.Check{core.OneOf("North", "South")}},
//	    },
//	})
//
// # Incremental Runs
//
// A run reads the ledger cursor (the latest completion time, formatted like a
// batch id), then processes every batch whose id sorts after it:
//
//  1. Each sheet is read and validated against its table's contract
//  2. Invalid rows are written to the batch's invalids/ directory
//  3. A sheet already in the ledger with the same valid row count is skipped
//  4. Otherwise the table is ensured, rows are inserted, and the ledger updated
//
// # Error Handling
//
// Failures are reported as [*Error] values with a [Kind]. Use errors.Is with
// the package sentinels:
//
//   - [ErrContractNotFound]: no contract for a sheet's table
//   - [ErrSchemaCreation]: table creation failed
//   - [ErrLoad]: bulk insert failed and was rolled back
//   - [ErrLedgerAccess]: the ledger could not be read or written
//   - [ErrSnapshot]: the bronze store could not be read
//
// Row-level validation failures are not errors; they travel as [InvalidRow].
package core
