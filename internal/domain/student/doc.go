// Package student contains the validated student record and the rules that
// turn a raw table into records.
//
// The package defines:
//
//   - Record: one student row after coercion and clamping
//   - Level: the enumerated educational tier, parsed from free-text tags
//   - Column: canonical column identifiers and their header aliases
//   - Validate: the pure validation step from RawTable to records
//
// # Validation rules
//
// Validate never reaches into session state. Everything it needs arrives in
// ValidateOptions:
//
//	report, err := student.Validate(table, student.ValidateOptions{
//	    SessionLevel: student.LevelPrimary,
//	})
//
// A missing required column, an empty name, or a cell that cannot be read as
// a number fails the whole batch. Scores outside [0, 20] and attendance
// outside [0, 100] are clamped and counted in the report.
//
// # Levels
//
// A level tag is matched against keyword substrings. When the tag is not
// recognised the record takes the session level and is marked with
// SourceSessionDefault, so the fallback stays visible downstream. If the
// session itself is mixed there is nothing to fall back to and validation
// fails with *shared.UnresolvedLevelError.
package student
