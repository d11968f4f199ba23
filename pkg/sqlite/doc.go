// Package sqlite wraps the embedded SQLite engine with single-owner
// connection and statement handles, positional parameter binding and a
// closed set of decoded column types.
//
// Engine failures are returned as *Exception values that record the engine
// result code and the place the failure was detected. Result columns the
// package cannot represent (blob and null) fail with a *DecodeError instead.
// Every placeholder must be bound before a statement executes.
//
// The driver converts values of columns declared BOOLEAN, DATE, DATETIME or
// TIMESTAMP before they are decoded, so reading such a column fails with a
// *DecodeError even when the stored value is an integer or text. Declare
// those columns INTEGER or TEXT, or cast them in the query
// (SELECT CAST(flag AS INTEGER) ...).
//
//	conn, err := sqlite.Open("app.db", sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenFullMutex, "")
//	if err != nil {
//		return err
//	}
//	defer conn.Release()
//
//	stmt, err := conn.Prepare("SELECT email FROM customer WHERE customer_id = ?")
//	if err != nil {
//		return err
//	}
//	defer stmt.Release()
//	if err := stmt.BindInt64(1, 42); err != nil {
//		return err
//	}
//	rs, err := stmt.Execute()
package sqlite
