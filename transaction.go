package firebird

// Transaction control.
//
// Each connection carries two transaction handles: the default handle
// used by the executor and controlled explicitly with StartTransaction,
// Commit and Rollback, and an internal handle reserved for the
// library's own queries. When autocommit is enabled and no user
// transaction is open, the executor starts and resolves transactions on
// the default handle by itself.

// StartTransaction starts a transaction on the connection's default
// transaction handle. It fails if a transaction is already running on
// the handle.
func (c *Conn) StartTransaction() error {
	if c == nil {
		return NewError(ErrTransaction, "invalid connection")
	}
	return c.startTransaction(&c.trans)
}

// Commit commits the transaction running on the connection's default
// transaction handle.
func (c *Conn) Commit() error {
	if c == nil {
		return NewError(ErrTransaction, "invalid connection")
	}
	return c.commitTransaction(&c.trans)
}

// Rollback rolls back the transaction running on the connection's
// default transaction handle.
func (c *Conn) Rollback() error {
	if c == nil {
		return NewError(ErrTransaction, "invalid connection")
	}
	return c.rollbackTransaction(&c.trans)
}

// InTransaction indicates whether the connection has been marked as
// being inside a user-initiated transaction. The mark is set when a SET
// TRANSACTION statement is executed, or when a statement is executed
// with autocommit off, and cleared by an executed COMMIT or ROLLBACK.
func (c *Conn) InTransaction() bool {
	if c == nil {
		return false
	}
	return c.inUserTransaction
}

// SetAutocommit changes the connection's autocommit behavior. With
// autocommit enabled, statements executed outside a user transaction
// run in a transaction of their own which is resolved as soon as the
// statement completes.
func (c *Conn) SetAutocommit(autocommit bool) {
	if c != nil {
		c.autocommit = autocommit
	}
}

// startTransaction starts a transaction on the given handle with the
// engine's default parameters.
func (c *Conn) startTransaction(trans *uintptr) error {
	if st := c.eng.startTransaction(c.sv, trans, &c.db); !st.ok() {
		return NewError(ErrTransaction, "unable to start transaction")
	}
	return nil
}

// commitTransaction commits the transaction on the given handle. The
// handle is zeroed only when the commit succeeds.
func (c *Conn) commitTransaction(trans *uintptr) error {
	if st := c.eng.commitTransaction(c.sv, trans); !st.ok() {
		return NewError(ErrTransaction, "unable to commit transaction")
	}
	*trans = 0
	return nil
}

// rollbackTransaction rolls back the transaction on the given handle.
// The handle is zeroed only when the rollback succeeds.
func (c *Conn) rollbackTransaction(trans *uintptr) error {
	if st := c.eng.rollbackTransaction(c.sv, trans); !st.ok() {
		return NewError(ErrTransaction, "unable to roll back transaction")
	}
	*trans = 0
	return nil
}
