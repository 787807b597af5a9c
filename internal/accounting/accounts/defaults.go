package accounts

// Fixed posting accounts used by the journal entry factory.
const (
	CodeCash              = "1.1.01"
	CodeBank              = "1.1.02"
	CodeReceivable        = "1.1.03"
	CodeInventory         = "1.1.04"
	CodeVATPaid           = "1.1.05"
	CodePayable           = "2.1.01"
	CodeVATCollected      = "2.1.02"
	CodeCapital           = "3.1.01"
	CodeSalesRevenue      = "4.1.01"
	CodeCostOfSales       = "5.1.01"
	CodeOperatingExpenses = "5.2.01"
	CodeFinancialExpenses = "5.3.01"
)

// DefaultAccounts is the seed chart installed on first boot.
func DefaultAccounts() []Account {
	return []Account{
		{Code: "1", Name: "Assets", Type: AccountTypeAsset, Level: 1},
		{Code: "1.1", Name: "Current Assets", Type: AccountTypeAsset, Level: 2, Parent: "1"},
		{Code: CodeCash, Name: "Cash", Type: AccountTypeAsset, Level: 3, Parent: "1.1"},
		{Code: CodeBank, Name: "Bank", Type: AccountTypeAsset, Level: 3, Parent: "1.1"},
		{Code: CodeReceivable, Name: "Accounts Receivable", Type: AccountTypeAsset, Level: 3, Parent: "1.1"},
		{Code: CodeInventory, Name: "Inventory", Type: AccountTypeAsset, Level: 3, Parent: "1.1"},
		{Code: CodeVATPaid, Name: "VAT Paid", Type: AccountTypeAsset, Level: 3, Parent: "1.1"},

		{Code: "2", Name: "Liabilities", Type: AccountTypeLiability, Level: 1},
		{Code: "2.1", Name: "Current Liabilities", Type: AccountTypeLiability, Level: 2, Parent: "2"},
		{Code: CodePayable, Name: "Accounts Payable", Type: AccountTypeLiability, Level: 3, Parent: "2.1"},
		{Code: CodeVATCollected, Name: "VAT Collected", Type: AccountTypeLiability, Level: 3, Parent: "2.1"},

		{Code: "3", Name: "Equity", Type: AccountTypeEquity, Level: 1},
		{Code: "3.1", Name: "Capital", Type: AccountTypeEquity, Level: 2, Parent: "3"},
		{Code: CodeCapital, Name: "Paid-in Capital", Type: AccountTypeEquity, Level: 3, Parent: "3.1"},

		{Code: "4", Name: "Revenue", Type: AccountTypeRevenue, Level: 1},
		{Code: "4.1", Name: "Operating Revenue", Type: AccountTypeRevenue, Level: 2, Parent: "4"},
		{Code: CodeSalesRevenue, Name: "Sales Revenue", Type: AccountTypeRevenue, Level: 3, Parent: "4.1"},

		{Code: "5", Name: "Costs and Expenses", Type: AccountTypeExpense, Level: 1},
		{Code: "5.1", Name: "Cost of Sales", Type: AccountTypeExpense, Level: 2, Parent: "5"},
		{Code: CodeCostOfSales, Name: "Cost of Goods Sold", Type: AccountTypeExpense, Level: 3, Parent: "5.1"},
		{Code: "5.2", Name: "Operating Expenses", Type: AccountTypeExpense, Level: 2, Parent: "5"},
		{Code: CodeOperatingExpenses, Name: "General Operating Expenses", Type: AccountTypeExpense, Level: 3, Parent: "5.2"},
		{Code: "5.3", Name: "Financial Expenses", Type: AccountTypeExpense, Level: 2, Parent: "5"},
		{Code: CodeFinancialExpenses, Name: "Interest and Bank Charges", Type: AccountTypeExpense, Level: 3, Parent: "5.3"},
	}
}

// DefaultChart builds the seed chart. The seed is static so a failure is a
// programming error.
func DefaultChart() *Chart {
	chart, err := NewChart(DefaultAccounts())
	if err != nil {
		panic(err)
	}
	return chart
}
