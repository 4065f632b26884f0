package devserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/abhisek/investory/internal/api"
)

type glossaryEntry struct {
	keywords  []string
	answer    string
	followUps []string
}

// glossary backs the dev tutor. The first entry whose keyword appears in
// the question wins.
var glossary = []glossaryEntry{
	{
		keywords:  []string{"dividend"},
		answer:    "A dividend is a share of a company's profit paid to its shareholders, usually a fixed amount per share. Not every company pays one; growing companies often reinvest instead.",
		followUps: []string{"What is dividend yield?", "Why do some companies skip dividends?"},
	},
	{
		keywords:  []string{"ipo", "listing", "prospectus"},
		answer:    "An IPO is the first time a company sells its shares to the public. The prospectus explains the business, its risks and how the money raised will be used.",
		followUps: []string{"What is a price band?", "What does oversubscribed mean?"},
	},
	{
		keywords:  []string{"index", "nifty", "sensex"},
		answer:    "An index tracks the combined price of a basket of stocks. NIFTY 50 follows fifty large Indian companies, so it is a quick read on how the market is doing overall.",
		followUps: []string{"What is an index fund?"},
	},
	{
		keywords:  []string{"diversif", "risk"},
		answer:    "Diversifying means spreading money across different companies and sectors so that one bad outcome does not sink the whole portfolio. It lowers risk without needing to predict winners.",
		followUps: []string{"How many stocks make a diversified portfolio?", "Is an index fund diversified?"},
	},
	{
		keywords:  []string{"compound", "sip"},
		answer:    "Compounding is earning returns on your earlier returns. Investing a fixed amount every month through an SIP gives compounding more time to work.",
		followUps: []string{"How long does money take to double?"},
	},
	{
		keywords:  []string{"stock", "share"},
		answer:    "A stock is a small slice of ownership in a company. If the company grows and earns more, the slice usually becomes more valuable.",
		followUps: []string{"How are stock prices set?", "What is a dividend?"},
	},
}

const fallbackAnswer = "That is a good question. Try the level stories for a guided explanation, or ask about stocks, IPOs, indices, dividends, diversification or compounding."

func tutorReply(message string) api.ChatResponse {
	q := strings.ToLower(message)
	for _, e := range glossary {
		for _, k := range e.keywords {
			if strings.Contains(q, k) {
				return api.ChatResponse{Reply: e.answer, FollowUps: e.followUps}
			}
		}
	}
	return api.ChatResponse{Reply: fallbackAnswer, FollowUps: []string{"What is a stock?"}}
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, tutorReply(req.Message))
}
