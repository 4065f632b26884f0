package levels

import (
	"fmt"
	"strings"

	"github.com/abhisek/investory/internal/quiz"
)

// catalog is the ordered level content, validated by init().
var catalog = []Level{
	{
		ID:    1,
		Title: "What Is a Stock?",
		Story: "Maya's lemonade stand needs money for a second cart. She sells slices of the business to friends. Each slice is a share.",
		Tasks: []Task{
			{ID: 1, Title: "Watch: owning a slice of a company"},
			{ID: 2, Title: "Sort items into assets and liabilities"},
			{ID: 3, Title: "Match companies to their ticker symbols"},
		},
		Questions: []Question{
			{ID: 1, Text: "What does a share of stock represent?", Options: []string{"A loan to the company", "Partial ownership of the company", "A coupon for products", "A bank deposit"}, CorrectOption: 1, Explanation: "A share is a small piece of ownership."},
			{ID: 2, Text: "Where are most stocks bought and sold?", Options: []string{"At a stock exchange", "At the central bank", "At the tax office", "At the company's store"}, CorrectOption: 0, Explanation: "Exchanges like NSE or NYSE match buyers and sellers."},
			{ID: 3, Text: "Why do companies sell shares?", Options: []string{"To pay fewer taxes", "To raise money to grow", "To reduce the number of owners", "To lower prices"}, CorrectOption: 1, Explanation: "Selling shares raises capital."},
			{ID: 4, Text: "What is a ticker symbol?", Options: []string{"A company's bank account", "A short code that identifies a stock", "The stock's price", "A type of dividend"}, CorrectOption: 1, Explanation: "AAPL identifies Apple, for example."},
			{ID: 5, Text: "A shareholder who owns 10 of 100 shares owns what fraction of the company?", Options: []string{"1%", "10%", "50%", "100%"}, CorrectOption: 1, Explanation: "10 / 100 = 10%."},
			{ID: 6, Text: "What is a dividend?", Options: []string{"A fee paid to the broker", "A share of profits paid to shareholders", "A stock split", "A government bond"}, CorrectOption: 1, Explanation: "Profitable companies may pay dividends."},
			{ID: 7, Text: "If demand for a stock rises and supply stays the same, the price usually...", Options: []string{"Falls", "Stays the same", "Rises", "Goes to zero"}, CorrectOption: 2, Explanation: "More buyers than sellers push prices up."},
		},
		RewardMoney: 10000,
		BadgeName:   "Market Rookie",
	},
	{
		ID:    2,
		Title: "The IPO Mystery",
		Story: "A startup is about to list on the exchange. Follow the clues from prospectus to listing day.",
		Tasks: []Task{
			{ID: 1, Title: "Read the prospectus highlights"},
			{ID: 2, Title: "Order the steps of an IPO"},
			{ID: 3, Title: "Spot the red flags in a listing"},
		},
		Questions: []Question{
			{ID: 1, Text: "What does IPO stand for?", Options: []string{"Initial Public Offering", "Internal Price Order", "Investor Profit Option", "Indexed Portfolio Output"}, CorrectOption: 0, Explanation: "It is the first sale of shares to the public."},
			{ID: 2, Text: "Which document describes a company before its IPO?", Options: []string{"Balance of trade", "Prospectus", "Invoice", "Tax return"}, CorrectOption: 1, Explanation: "The prospectus discloses business and risks."},
			{ID: 3, Text: "Who usually helps a company price its IPO?", Options: []string{"Underwriters (investment banks)", "Retail investors", "The stock exchange janitor", "Competitors"}, CorrectOption: 0, Explanation: "Underwriters set the price band and sell the issue."},
			{ID: 4, Text: "What is a price band?", Options: []string{"The range within which investors bid", "The final closing price", "A music group", "The dividend rate"}, CorrectOption: 0, Explanation: "Bids are placed within the band."},
			{ID: 5, Text: "An IPO oversubscribed 5 times means...", Options: []string{"Five companies listed", "Bids were five times the shares offered", "The price fell five times", "Only 5 investors applied"}, CorrectOption: 1, Explanation: "Demand exceeded supply fivefold."},
			{ID: 6, Text: "What is a listing gain?", Options: []string{"Profit when the listing price is above the issue price", "A tax refund", "The company's revenue", "A bonus share"}, CorrectOption: 0, Explanation: "It is the jump on listing day."},
			{ID: 7, Text: "Which is a red flag in an IPO?", Options: []string{"Clear use of proceeds", "Growing profits", "Promoters selling most of their stake", "Audited accounts"}, CorrectOption: 2, Explanation: "Insiders cashing out heavily deserves scrutiny."},
		},
		RewardMoney: 5000,
		BadgeName:   "IPO Detective",
	},
	{
		ID:    3,
		Title: "Reading the Ticker",
		Story: "The trading floor is buzzing. Learn to read quotes, charts and the index that sums up the market mood.",
		Tasks: []Task{
			{ID: 1, Title: "Decode a live quote"},
			{ID: 2, Title: "Add three stocks to your watchlist"},
			{ID: 3, Title: "Draw a candlestick from OHLC values"},
		},
		Questions: []Question{
			{ID: 1, Text: "A stock index like the NIFTY 50 measures...", Options: []string{"One company's profit", "The performance of a basket of stocks", "Interest rates", "Inflation"}, CorrectOption: 1, Explanation: "An index tracks a group of stocks."},
			{ID: 2, Text: "A quote shows +2.5%. This means the price...", Options: []string{"Fell 2.5%", "Rose 2.5% from the previous close", "Is 2.5 rupees", "Paid a 2.5% dividend"}, CorrectOption: 1, Explanation: "Change is measured against the previous close."},
			{ID: 3, Text: "In a candlestick, the body spans...", Options: []string{"High to low", "Open to close", "Volume", "Bid to ask"}, CorrectOption: 1, Explanation: "Wicks show high and low."},
			{ID: 4, Text: "What is market capitalisation?", Options: []string{"Share price times shares outstanding", "Total debt", "Yearly revenue", "Number of employees"}, CorrectOption: 0, Explanation: "It values the whole company."},
			{ID: 5, Text: "Volume tells you...", Options: []string{"How loud the trading floor is", "How many shares traded", "The dividend yield", "The P/E ratio"}, CorrectOption: 1, Explanation: "Volume counts shares changing hands."},
		},
		RewardMoney: 7500,
		BadgeName:   "Chart Reader",
	},
	{
		ID:    4,
		Title: "Risk and Diversification",
		Story: "A storm hits one sector. Investors with every egg in one basket panic. Build a portfolio that can weather it.",
		Tasks: []Task{
			{ID: 1, Title: "Classify investments by risk"},
			{ID: 2, Title: "Build a five-stock portfolio across sectors"},
			{ID: 3, Title: "Simulate a sector crash"},
		},
		Questions: []Question{
			{ID: 1, Text: "Diversification means...", Options: []string{"Buying only one stock", "Spreading money across different investments", "Selling everything", "Borrowing to invest"}, CorrectOption: 1, Explanation: "It lowers the impact of any single loss."},
			{ID: 2, Text: "Which is usually the riskiest?", Options: []string{"Government bonds", "Fixed deposits", "A single small-cap stock", "An index fund"}, CorrectOption: 2, Explanation: "Single small companies swing the most."},
			{ID: 3, Text: "Higher potential return usually comes with...", Options: []string{"Lower risk", "Higher risk", "No risk", "Guaranteed profit"}, CorrectOption: 1, Explanation: "Risk and return go together."},
			{ID: 4, Text: "An index fund is diversified because it...", Options: []string{"Holds many stocks in the index", "Holds one stock", "Only holds cash", "Trades daily"}, CorrectOption: 0, Explanation: "It mirrors a whole index."},
			{ID: 5, Text: "Your time horizon affects risk because...", Options: []string{"Longer horizons can ride out short-term drops", "Time has no effect", "Short horizons always win", "Stocks only go up"}, CorrectOption: 0, Explanation: "Time smooths volatility."},
		},
		RewardMoney: 10000,
		BadgeName:   "Risk Balancer",
	},
	{
		ID:    5,
		Title: "The Long Game",
		Story: "Grandpa's old passbook shows small monthly investments that grew into a fortune. Uncover the magic of compounding.",
		Tasks: []Task{
			{ID: 1, Title: "Run the compounding calculator"},
			{ID: 2, Title: "Set up a monthly SIP plan"},
			{ID: 3, Title: "Write your investing rules"},
		},
		Questions: []Question{
			{ID: 1, Text: "Compounding means earning returns on...", Options: []string{"Only your original money", "Your money and past returns", "Borrowed money", "Taxes"}, CorrectOption: 1, Explanation: "Returns earn returns."},
			{ID: 2, Text: "An SIP is...", Options: []string{"A systematic investment plan", "A stock index price", "A single investment payment", "A share issue process"}, CorrectOption: 0, Explanation: "Fixed amounts invested regularly."},
			{ID: 3, Text: "Starting to invest early helps because...", Options: []string{"Compounding has more time to work", "Prices are always lower", "There is no risk", "Taxes are zero"}, CorrectOption: 0, Explanation: "Time is the key ingredient."},
			{ID: 4, Text: "Trying to time every market move usually...", Options: []string{"Guarantees profit", "Leads to missed gains and higher costs", "Has no cost", "Removes risk"}, CorrectOption: 1, Explanation: "Time in the market beats timing the market."},
			{ID: 5, Text: "Rupee cost averaging means...", Options: []string{"Buying more units when prices are low", "Always buying at the top", "Selling every month", "Paying a fixed fee"}, CorrectOption: 0, Explanation: "A fixed amount buys more when prices dip."},
		},
		RewardMoney: 15000,
		BadgeName:   "Compound Champion",
	},
}

func init() {
	if err := validateLevels(catalog); err != nil {
		panic(err)
	}
}

// All returns every level in order.
func All() []Level {
	out := make([]Level, len(catalog))
	copy(out, catalog)
	return out
}

// Count returns the number of levels in the course.
func Count() int {
	return len(catalog)
}

// Get returns the level with the given ID.
func Get(id int) (Level, bool) {
	if id < 1 || id > len(catalog) {
		return Level{}, false
	}
	return catalog[id-1], true
}

// MustGet returns the level with the given ID and panics if it does not exist.
func MustGet(id int) Level {
	l, ok := Get(id)
	if !ok {
		panic(fmt.Sprintf("levels: unknown level %d", id))
	}
	return l
}

// AnswerKey converts the level's questions into the evaluator's answer key.
func (l Level) AnswerKey() []quiz.Question {
	key := make([]quiz.Question, len(l.Questions))
	for i, q := range l.Questions {
		key[i] = quiz.Question{ID: q.ID, CorrectOption: q.CorrectOption}
	}
	return key
}

// Validate checks the built-in catalog.
func Validate() error {
	return validateLevels(catalog)
}

// validateLevels performs structural checks on the given levels.
// Returns a combined error describing all problems found, or nil if valid.
func validateLevels(levels []Level) error {
	var errs []string

	for i, l := range levels {
		if l.ID != i+1 {
			errs = append(errs, fmt.Sprintf("level at position %d has ID %d, want %d", i, l.ID, i+1))
		}
		if l.Title == "" {
			errs = append(errs, fmt.Sprintf("level %d: empty title", l.ID))
		}
		if l.RewardMoney <= 0 {
			errs = append(errs, fmt.Sprintf("level %d: reward must be > 0, got %d", l.ID, l.RewardMoney))
		}
		if strings.TrimSpace(l.BadgeName) == "" {
			errs = append(errs, fmt.Sprintf("level %d: empty badge name", l.ID))
		}
		if len(l.Questions) == 0 {
			errs = append(errs, fmt.Sprintf("level %d: no quiz questions", l.ID))
		}

		taskIDs := make(map[int]bool, len(l.Tasks))
		for _, t := range l.Tasks {
			if t.ID <= 0 {
				errs = append(errs, fmt.Sprintf("level %d: task ID must be positive, got %d", l.ID, t.ID))
			}
			if taskIDs[t.ID] {
				errs = append(errs, fmt.Sprintf("level %d: duplicate task ID %d", l.ID, t.ID))
			}
			taskIDs[t.ID] = true
		}

		questionIDs := make(map[int]bool, len(l.Questions))
		for _, q := range l.Questions {
			if questionIDs[q.ID] {
				errs = append(errs, fmt.Sprintf("level %d: duplicate question ID %d", l.ID, q.ID))
			}
			questionIDs[q.ID] = true
			if len(q.Options) < 2 {
				errs = append(errs, fmt.Sprintf("level %d question %d: needs at least 2 options", l.ID, q.ID))
			}
			if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
				errs = append(errs, fmt.Sprintf("level %d question %d: correct option %d out of range", l.ID, q.ID, q.CorrectOption))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("level catalog validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
