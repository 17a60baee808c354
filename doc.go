/*
Package firebird is a client library for the Firebird relational
database, binding the native fbclient library at runtime.

# Overview

The library exposes two APIs:

1. A direct API built around Conn and Result, mirroring the classic
query/result workflow: execute a statement, inspect the result's
status, and read the fully materialized rows in their display form.

2. A standard database/sql driver registered as "firebird" for
compatibility with Go's ecosystem.

No C toolchain is needed: the Firebird client library is located and
loaded dynamically when the first connection is opened. Set the
FIREBIRD_LIBRARY environment variable to point at a specific client
library build.

# Direct API Example

	package main

	import (
		"fmt"
		"log"

		"github.com/semihalev/go-firebird"
	)

	func main() {
		conn, err := firebird.Connect("localhost:/data/employee.fdb", "SYSDBA", "masterkey")
		if err != nil {
			log.Fatalf("failed to connect: %v", err)
		}
		defer conn.Close()

		res := conn.Exec("SELECT emp_no, full_name FROM employee ORDER BY emp_no")
		if res.Status() != firebird.StatusTuplesOK {
			log.Fatalf("query failed: %s", res.ErrorMessage())
		}

		for row := 0; row < res.RowCount(); row++ {
			fmt.Printf("%s  %s\n", res.Value(row, 0), res.Value(row, 1))
		}
	}

Parameterized statements bind values positionally; a nil entry binds
NULL:

	name := "Smith"
	res := conn.ExecParams(
		"SELECT emp_no FROM employee WHERE last_name = ?",
		[]*string{&name},
		nil,
	)

# database/sql Example

	package main

	import (
		"database/sql"
		"log"

		_ "github.com/semihalev/go-firebird"
	)

	func main() {
		db, err := sql.Open("firebird",
			"db_path=localhost:/data/employee.fdb user=SYSDBA password=masterkey")
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		rows, err := db.Query("SELECT emp_no, full_name FROM employee WHERE emp_no > ?", 100)
		if err != nil {
			log.Fatal(err)
		}
		defer rows.Close()

		for rows.Next() {
			var no, name string
			if err := rows.Scan(&no, &name); err != nil {
				log.Fatal(err)
			}
			log.Printf("%s %s", no, name)
		}
	}

# Transactions

Connections start in autocommit mode: each statement commits on
success. Issuing SET TRANSACTION through Exec suspends autocommit until
the matching COMMIT or ROLLBACK statement, which is also how the
database/sql Begin/Commit/Rollback path is implemented. The explicit
StartTransaction, Commit and Rollback methods drive the same
transaction handle directly and leave the autocommit bookkeeping alone.

# Values

Result values are delivered in their display text form: numbers are
rendered with their declared scale, dates and times in ISO style, blobs
as their full contents, and RDB$DB_KEY columns as 16 hex digits.
Column metadata (name, type, nullability, display width) is available
through the Field accessors on Result.

# Server Support

Firebird 2.5 and later are supported. BOOLEAN needs a 3.0 server;
INT128 and the TIME ZONE types need 4.0. On 4.0+ connections the
library switches time zone delivery to the extended wire form so zone
offsets survive the round trip.
*/
package firebird
