package alias

// =============================================================================
// CANONICAL FIELD CATALOG
// Each statement category owns its own ordered table. Declaration order is the
// tie-breaker for every matching stage, so more specific fields come first.
// =============================================================================

// Category scopes alias resolution to one statement (or the ratio table).
type Category string

const (
	CategoryIncome   Category = "income"
	CategoryBalance  Category = "balance"
	CategoryCashFlow Category = "cash_flow"
	CategoryRatio    Category = "ratio"
	CategoryAny      Category = "any"
)

// Kind is the value category used by the value cleaner for plausibility rules.
type Kind string

const (
	KindMonetary       Kind = "monetary"        // must be >= 0
	KindSignedMonetary Kind = "signed_monetary" // negatives allowed (profit, cash-flow nets)
	KindRatio          Kind = "ratio"           // percent or multiple
	KindCount          Kind = "count"           // shares, headcount
	KindPerShare       Kind = "per_share"       // EPS and friends, signed, never scaled
)

// Field is one canonical field with its aliases.
type Field struct {
	ID      string
	Kind    Kind
	Aliases []string
}

// Canonical field ids used across the engine.
const (
	Revenue            = "revenue"
	CostOfRevenue      = "cost_of_revenue"
	GrossProfit        = "gross_profit"
	SellingExpenses    = "selling_expenses"
	AdminExpenses      = "admin_expenses"
	RDExpenses         = "rd_expenses"
	FinancialExpenses  = "financial_expenses"
	OperatingExpenses  = "operating_expenses"
	InterestExpense    = "interest_expense"
	InterestIncome     = "interest_income"
	InvestmentIncome   = "investment_income"
	OtherIncome        = "other_income"
	ImpairmentLoss     = "impairment_loss"
	NonOperatingIncome = "non_operating_income"
	NonOperatingCost   = "non_operating_expense"
	OperatingProfit    = "operating_profit"
	TotalProfit        = "total_profit"
	TaxExpense         = "tax_expense"
	NetProfitParent    = "net_profit_parent"
	NetProfit          = "net_profit"
	EPS                = "eps"
	TotalAssets        = "total_assets"
	CurrentAssets      = "current_assets"
	NonCurrentAssets   = "non_current_assets"
	Cash               = "cash"
	Inventory          = "inventory"
	AccountsReceivable = "accounts_receivable"
	FixedAssets        = "fixed_assets"
	IntangibleAssets   = "intangible_assets"
	LongTermInvest     = "long_term_investments"
	TotalLiabilities   = "total_liabilities"
	CurrentLiabilities = "current_liabilities"
	NonCurrentLiab     = "non_current_liabilities"
	LiabilitiesEquity  = "total_liabilities_and_equity"
	ShortTermDebt      = "short_term_debt"
	LongTermDebt       = "long_term_debt"
	AccountsPayable    = "accounts_payable"
	RetainedEarnings   = "retained_earnings"
	Equity             = "equity"
	SharesOutstanding  = "shares_outstanding"
	OperatingCashFlow  = "operating_cash_flow"
	InvestingCashFlow  = "investing_cash_flow"
	FinancingCashFlow  = "financing_cash_flow"
	CapitalExpenditure = "capital_expenditure"
	DividendsPaid      = "dividends_paid"
	FreeCashFlow       = "free_cash_flow"
	NetCashFlow        = "net_cash_flow"
)

var incomeFields = []Field{
	{ID: Revenue, Kind: KindMonetary, Aliases: []string{
		"营业收入", "营业总收入", "主营业务收入", "销售收入", "营收", "收入", "总收入",
		"revenue", "revenues", "total revenue", "operating revenue", "sales revenue", "sales", "net sales",
		"turnover", "income", "total_operate_income", "operate_income",
	}},
	{ID: CostOfRevenue, Kind: KindMonetary, Aliases: []string{
		"营业成本", "主营业务成本", "销售成本", "营业总成本",
		"cost of revenue", "cost of sales", "cost of goods sold", "cogs", "operating cost", "total_operate_cost",
	}},
	{ID: GrossProfit, Kind: KindSignedMonetary, Aliases: []string{
		"毛利润", "毛利", "gross profit", "gross margin amount",
	}},
	{ID: SellingExpenses, Kind: KindMonetary, Aliases: []string{
		"销售费用", "selling expenses", "sale_expense",
	}},
	{ID: AdminExpenses, Kind: KindMonetary, Aliases: []string{
		"管理费用", "administrative expenses", "manage_expense", "g&a",
	}},
	{ID: RDExpenses, Kind: KindMonetary, Aliases: []string{
		"研发费用", "研发支出", "research and development", "r&d expenses", "research_expense",
	}},
	{ID: FinancialExpenses, Kind: KindSignedMonetary, Aliases: []string{
		"财务费用", "financial expenses", "finance_expense",
	}},
	{ID: OperatingExpenses, Kind: KindMonetary, Aliases: []string{
		"营业费用", "期间费用", "operating expenses", "opex",
	}},
	{ID: InterestExpense, Kind: KindMonetary, Aliases: []string{
		"利息费用", "利息支出", "interest expense", "interest",
	}},
	{ID: InterestIncome, Kind: KindMonetary, Aliases: []string{
		"利息收入", "interest income", "interest_income",
	}},
	{ID: InvestmentIncome, Kind: KindSignedMonetary, Aliases: []string{
		"投资收益", "投资净收益", "investment income", "invest_income",
	}},
	{ID: OtherIncome, Kind: KindSignedMonetary, Aliases: []string{
		"其他收益", "other income",
	}},
	{ID: ImpairmentLoss, Kind: KindSignedMonetary, Aliases: []string{
		"资产减值损失", "信用减值损失", "impairment loss", "asset impairment loss", "asset_impairment_loss",
	}},
	{ID: NonOperatingIncome, Kind: KindMonetary, Aliases: []string{
		"营业外收入", "non-operating income", "nonoperating income", "nonbusiness_income",
	}},
	{ID: NonOperatingCost, Kind: KindMonetary, Aliases: []string{
		"营业外支出", "non-operating expense", "nonoperating expense", "nonbusiness_expense",
	}},
	{ID: OperatingProfit, Kind: KindSignedMonetary, Aliases: []string{
		"营业利润", "operating profit", "operating income", "ebit", "operate_profit",
	}},
	{ID: TotalProfit, Kind: KindSignedMonetary, Aliases: []string{
		"利润总额", "税前利润", "total profit", "profit before tax", "pretax income", "total_profit",
	}},
	{ID: TaxExpense, Kind: KindSignedMonetary, Aliases: []string{
		"所得税费用", "所得税", "税费", "income tax", "tax expense", "income_tax",
	}},
	{ID: NetProfitParent, Kind: KindSignedMonetary, Aliases: []string{
		"归属于母公司所有者的净利润", "归属于母公司股东的净利润", "归母净利润", "归属母公司净利润",
		"net profit attributable to parent", "parent_netprofit",
	}},
	{ID: NetProfit, Kind: KindSignedMonetary, Aliases: []string{
		"净利润", "净利", "税后利润", "利润", "净收益",
		"net profit", "net income", "profit", "earnings", "netprofit", "net_income",
	}},
	{ID: EPS, Kind: KindPerShare, Aliases: []string{
		"每股收益", "基本每股收益", "eps", "earnings per share", "basic eps",
	}},
}

var balanceFields = []Field{
	{ID: CurrentAssets, Kind: KindMonetary, Aliases: []string{
		"流动资产合计", "流动资产", "current assets", "total current assets", "total_current_assets",
	}},
	{ID: NonCurrentAssets, Kind: KindMonetary, Aliases: []string{
		"非流动资产合计", "非流动资产", "non-current assets", "total non-current assets", "total_noncurrent_assets",
	}},
	{ID: Cash, Kind: KindMonetary, Aliases: []string{
		"货币资金", "现金及现金等价物", "现金等价物", "现金",
		"cash", "cash and equivalents", "cash and cash equivalents", "monetaryfunds",
	}},
	{ID: Inventory, Kind: KindMonetary, Aliases: []string{
		"存货", "存货净额", "inventory", "inventories",
	}},
	{ID: AccountsReceivable, Kind: KindMonetary, Aliases: []string{
		"应收账款", "应收票据及应收账款", "应收款项", "应收账款净额",
		"accounts receivable", "receivables", "accounts_rece",
	}},
	{ID: FixedAssets, Kind: KindMonetary, Aliases: []string{
		"固定资产", "固定资产净值", "固定资产净额", "fixed assets", "ppe", "property plant and equipment",
	}},
	{ID: IntangibleAssets, Kind: KindMonetary, Aliases: []string{
		"无形资产", "intangible assets",
	}},
	{ID: LongTermInvest, Kind: KindMonetary, Aliases: []string{
		"长期投资", "长期股权投资", "long term investments", "long_equity_invest",
	}},
	{ID: TotalAssets, Kind: KindMonetary, Aliases: []string{
		"总资产", "资产总计", "资产合计", "资产总额", "资产",
		"total assets", "assets", "total_assets",
	}},
	{ID: CurrentLiabilities, Kind: KindMonetary, Aliases: []string{
		"流动负债合计", "流动负债", "current liabilities", "total current liabilities", "total_current_liab",
	}},
	{ID: NonCurrentLiab, Kind: KindMonetary, Aliases: []string{
		"非流动负债合计", "非流动负债", "non-current liabilities", "total non-current liabilities", "total_noncurrent_liab",
	}},
	{ID: ShortTermDebt, Kind: KindMonetary, Aliases: []string{
		"短期借款", "短期债务", "short term debt", "short term borrowings", "short_loan",
	}},
	{ID: LongTermDebt, Kind: KindMonetary, Aliases: []string{
		"长期借款", "长期债务", "long term debt", "long term borrowings", "long_loan",
	}},
	{ID: AccountsPayable, Kind: KindMonetary, Aliases: []string{
		"应付账款", "应付票据及应付账款", "accounts payable", "payables",
	}},
	{ID: TotalLiabilities, Kind: KindMonetary, Aliases: []string{
		"总负债", "负债合计", "负债总计", "负债总额", "负债",
		"total liabilities", "liabilities", "total_liabilities",
	}},
	{ID: LiabilitiesEquity, Kind: KindMonetary, Aliases: []string{
		"负债和所有者权益总计", "负债和所有者权益合计", "负债和股东权益总计", "负债和股东权益合计", "负债及所有者权益总计",
		"total liabilities and equity", "total liabilities and shareholders equity", "total_liab_share_equity",
	}},
	{ID: RetainedEarnings, Kind: KindSignedMonetary, Aliases: []string{
		"未分配利润", "留存收益", "retained earnings",
	}},
	{ID: Equity, Kind: KindMonetary, Aliases: []string{
		"所有者权益合计", "股东权益合计", "所有者权益", "股东权益", "净资产", "权益总计",
		"归属于母公司股东权益合计",
		"equity", "total equity", "shareholders equity", "stockholders equity", "net assets", "total_equity",
		"total_parent_equity",
	}},
	{ID: SharesOutstanding, Kind: KindCount, Aliases: []string{
		"总股本", "股本", "shares outstanding", "total shares",
	}},
}

var cashFlowFields = []Field{
	{ID: OperatingCashFlow, Kind: KindSignedMonetary, Aliases: []string{
		"经营活动产生的现金流量净额", "经营活动现金流量净额", "经营活动现金流", "经营现金流", "经营性现金流",
		"operating cash flow", "cash from operations", "net cash from operating activities", "netcash_operate",
		"ocf",
	}},
	{ID: InvestingCashFlow, Kind: KindSignedMonetary, Aliases: []string{
		"投资活动产生的现金流量净额", "投资活动现金流量净额", "投资活动现金流", "投资现金流",
		"investing cash flow", "cash from investing", "net cash from investing activities", "netcash_invest",
	}},
	{ID: FinancingCashFlow, Kind: KindSignedMonetary, Aliases: []string{
		"筹资活动产生的现金流量净额", "筹资活动现金流量净额", "筹资活动现金流", "筹资现金流", "融资现金流",
		"financing cash flow", "cash from financing", "net cash from financing activities", "netcash_finance",
	}},
	{ID: CapitalExpenditure, Kind: KindSignedMonetary, Aliases: []string{
		"购建固定资产、无形资产和其他长期资产支付的现金", "资本支出", "资本性支出",
		"capital expenditure", "capex", "construct_long_asset",
	}},
	{ID: DividendsPaid, Kind: KindSignedMonetary, Aliases: []string{
		"分配股利、利润或偿付利息支付的现金", "分配股利、利润支付的现金", "分配股利支付的现金", "分红", "现金分红", "支付股利",
		"dividends paid", "dividends",
	}},
	{ID: FreeCashFlow, Kind: KindSignedMonetary, Aliases: []string{
		"自由现金流", "自由现金流量", "free cash flow", "fcf",
	}},
	{ID: NetCashFlow, Kind: KindSignedMonetary, Aliases: []string{
		"现金及现金等价物净增加额", "现金净流量", "现金净增加额", "net cash flow", "net change in cash",
	}},
}

var ratioFields = []Field{
	{ID: "gross_profit_margin", Kind: KindRatio, Aliases: []string{"毛利率", "销售毛利率", "gross margin", "gross profit margin"}},
	{ID: "net_profit_margin", Kind: KindRatio, Aliases: []string{"净利润率", "净利率", "销售净利率", "net margin", "net profit margin"}},
	{ID: "operating_margin", Kind: KindRatio, Aliases: []string{"营业利润率", "operating margin"}},
	{ID: "roe", Kind: KindRatio, Aliases: []string{"净资产收益率", "roe", "return on equity"}},
	{ID: "roa", Kind: KindRatio, Aliases: []string{"总资产收益率", "总资产报酬率", "roa", "return on assets"}},
	{ID: "debt_to_asset_ratio", Kind: KindRatio, Aliases: []string{"资产负债率", "debt ratio", "debt to asset ratio", "debt to assets"}},
	{ID: "current_ratio", Kind: KindRatio, Aliases: []string{"流动比率", "current ratio"}},
	{ID: "quick_ratio", Kind: KindRatio, Aliases: []string{"速动比率", "quick ratio", "acid test ratio"}},
	{ID: "equity_ratio", Kind: KindRatio, Aliases: []string{"权益比率", "股东权益比率", "equity ratio"}},
	{ID: "interest_coverage", Kind: KindRatio, Aliases: []string{"利息保障倍数", "interest coverage"}},
	{ID: "asset_turnover", Kind: KindRatio, Aliases: []string{"总资产周转率", "资产周转率", "asset turnover"}},
	{ID: "inventory_turnover", Kind: KindRatio, Aliases: []string{"存货周转率", "inventory turnover"}},
	{ID: "receivables_turnover", Kind: KindRatio, Aliases: []string{"应收账款周转率", "receivables turnover"}},
	{ID: "revenue_growth", Kind: KindRatio, Aliases: []string{"营业收入增长率", "营收增长率", "收入增长率", "revenue growth"}},
	{ID: "profit_growth", Kind: KindRatio, Aliases: []string{"净利润增长率", "利润增长率", "profit growth", "net profit growth"}},
	{ID: "asset_growth", Kind: KindRatio, Aliases: []string{"总资产增长率", "资产增长率", "asset growth"}},
}

// RatioCategoryOf maps a ratio id from the ratio table to its ratio category.
var RatioCategoryOf = map[string]string{
	"gross_profit_margin":  "profitability",
	"net_profit_margin":    "profitability",
	"operating_margin":     "profitability",
	"roe":                  "profitability",
	"roa":                  "profitability",
	"debt_to_asset_ratio":  "solvency",
	"current_ratio":        "solvency",
	"quick_ratio":          "solvency",
	"equity_ratio":         "solvency",
	"interest_coverage":    "solvency",
	"asset_turnover":       "efficiency",
	"inventory_turnover":   "efficiency",
	"receivables_turnover": "efficiency",
	"revenue_growth":       "growth",
	"profit_growth":        "growth",
	"asset_growth":         "growth",
}

// Tables returns the ordered field table of a category. CategoryAny is not a table.
func Tables(c Category) []Field {
	switch c {
	case CategoryIncome:
		return incomeFields
	case CategoryBalance:
		return balanceFields
	case CategoryCashFlow:
		return cashFlowFields
	case CategoryRatio:
		return ratioFields
	}
	return nil
}

// StatementCategories lists the statement tables searched by CategoryAny, in order.
func StatementCategories() []Category {
	return []Category{CategoryIncome, CategoryBalance, CategoryCashFlow}
}

var fieldIndex = buildFieldIndex()

type fieldInfo struct {
	category Category
	kind     Kind
}

func buildFieldIndex() map[string]fieldInfo {
	idx := map[string]fieldInfo{}
	for _, c := range []Category{CategoryIncome, CategoryBalance, CategoryCashFlow, CategoryRatio} {
		for _, f := range Tables(c) {
			idx[f.ID] = fieldInfo{category: c, kind: f.Kind}
		}
	}
	return idx
}

// KindOf returns the value kind of a canonical field id.
func KindOf(fieldID string) (Kind, bool) {
	info, ok := fieldIndex[fieldID]
	return info.kind, ok
}

// CategoryOf returns the statement category that owns a canonical field id.
func CategoryOf(fieldID string) (Category, bool) {
	info, ok := fieldIndex[fieldID]
	return info.category, ok
}

// IsCanonical reports whether id is a canonical field id.
func IsCanonical(id string) bool {
	_, ok := fieldIndex[id]
	return ok
}
