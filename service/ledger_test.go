package service

import (
	"testing"

	"minty/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewLedger(gdb), mock, func() { _ = db.Close() }
}

func budgetID(id uint) *uint { return &id }

func TestLedgerApplyCreate_ExpenseWithBudget(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	// 增量必须是服务端表达式 spent_amount + ?
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(120.5, sqlmock.AnyArg(), uint(7), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -120.5, BudgetID: budgetID(7)}
	require.NoError(t, ledger.ApplyCreate(txn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyCreate_SkipsIncomeAndUnlinked(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	// 收入或未关联预算的支出不触发任何 SQL
	income := &models.Transaction{UserID: 1, Type: models.TransactionTypeIncome, Amount: 500, BudgetID: budgetID(7)}
	require.NoError(t, ledger.ApplyCreate(income))

	unlinked := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -50}
	require.NoError(t, ledger.ApplyCreate(unlinked))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyDelete_RefundsBudget(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(-80.0, sqlmock.AnyArg(), uint(3), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -80, BudgetID: budgetID(3)}
	require.NoError(t, ledger.ApplyDelete(txn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyUpdate_SameBudgetAmountChange(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	// 同预算 100 -> 150：净增量一次写 +50
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(50.0, sqlmock.AnyArg(), uint(5), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	oldTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -100, BudgetID: budgetID(5)}
	newTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -150, BudgetID: budgetID(5)}
	require.NoError(t, ledger.ApplyUpdate(oldTxn, newTxn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyUpdate_NoChangeWritesNothing(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	// 金额和预算都没变：净增量为 0，不触发 SQL
	oldTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -100, BudgetID: budgetID(5)}
	newTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -100, BudgetID: budgetID(5)}
	require.NoError(t, ledger.ApplyUpdate(oldTxn, newTxn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyUpdate_SwitchBudget(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	// 换预算：旧预算 -100，新预算 +100，两次写（map 遍历顺序不定，两条都可能先来）
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(-100.0, sqlmock.AnyArg(), uint(5), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(100.0, sqlmock.AnyArg(), uint(6), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	oldTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -100, BudgetID: budgetID(5)}
	newTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -100, BudgetID: budgetID(6)}
	require.NoError(t, ledger.ApplyUpdate(oldTxn, newTxn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyUpdate_ExpenseToIncome(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	// 支出改收入：只需回退旧预算
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(-100.0, sqlmock.AnyArg(), uint(5), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	oldTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeExpense, Amount: -100, BudgetID: budgetID(5)}
	newTxn := &models.Transaction{UserID: 1, Type: models.TransactionTypeIncome, Amount: 100}
	require.NoError(t, ledger.ApplyUpdate(oldTxn, newTxn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerCountLinked(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `transactions`").
		WithArgs(uint(1), uint(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := ledger.CountLinked(1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerUnlinkBudget(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `transactions` SET `budget_id`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	affected, err := ledger.UnlinkBudget(1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRecalcBudget(t *testing.T) {
	ledger, mock, cleanup := newMockLedger(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(ABS\\(amount\\)\\), 0\\) FROM `transactions`").
		WithArgs(uint(1), uint(5), models.TransactionTypeExpense).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(345.678))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=\\?").
		WithArgs(345.68, sqlmock.AnyArg(), uint(5), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	total, err := ledger.RecalcBudget(1, 5)
	require.NoError(t, err)
	assert.InDelta(t, 345.68, total, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}
