package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionTypeSemantics(t *testing.T) {
	assert.Equal(t, 5, TxImport.SignedDelta(5))
	assert.Equal(t, -5, TxExport.SignedDelta(5))
	assert.Equal(t, ActionImportTransaction, TxImport.HistoryAction())
	assert.Equal(t, ActionExportTransaction, TxExport.HistoryAction())

	assert.True(t, TxImport.Valid())
	assert.False(t, TransactionType("transfer").Valid())

	tx := Transaction{Type: TxExport, Quantity: 3}
	assert.Equal(t, -3, tx.Delta())
}

func TestMasterOnlyPrivileges(t *testing.T) {
	var master []string
	for _, p := range DefaultPrivileges {
		if p.MasterOnly() {
			master = append(master, p.Code)
		}
	}
	assert.ElementsMatch(t, []string{
		PrivProductDelete, PrivTransactionDelete, PrivLedgerReconcile, PrivUserCreate, PrivUserUpdate,
	}, master)
}

func TestUserPasswordAndResponse(t *testing.T) {
	u := &User{Email: "a@example.com", Privileges: []Privilege{{Code: PrivProductView}}}
	assert.NoError(t, u.SetPassword("secret1"))
	assert.True(t, u.CheckPassword("secret1"))
	assert.False(t, u.CheckPassword("secret2"))

	resp := u.ToResponse()
	assert.Equal(t, []string{PrivProductView}, resp.Privileges)
}
