package devserver

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/market"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64

	// maxStep bounds one random-walk move as a fraction of the price.
	maxStep = 0.01
)

var seedQuotes = []api.Quote{
	{Symbol: "^NSEI", Name: "NIFTY 50", Price: 22450.35},
	{Symbol: "^BSESN", Name: "S&P BSE SENSEX", Price: 73876.82},
	{Symbol: "RELIANCE", Name: "Reliance Industries", Price: 2948.10},
	{Symbol: "TCS", Name: "Tata Consultancy Services", Price: 3890.55},
	{Symbol: "INFY", Name: "Infosys", Price: 1502.20},
	{Symbol: "HDFCBANK", Name: "HDFC Bank", Price: 1448.75},
	{Symbol: "ITC", Name: "ITC", Price: 428.90},
}

// quoteBook is the server's random-walk price table.
type quoteBook struct {
	mu     sync.Mutex
	rng    *rand.Rand
	quotes map[string]*quoteState
}

type quoteState struct {
	quote     api.Quote
	prevClose float64
}

func newQuoteBook(seed uint64) *quoteBook {
	if seed == 0 {
		seed = rand.Uint64()
	}
	b := &quoteBook{
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		quotes: make(map[string]*quoteState, len(seedQuotes)),
	}
	for _, q := range seedQuotes {
		b.quotes[q.Symbol] = &quoteState{quote: q, prevClose: q.Price}
	}
	return b
}

func kindOf(symbol string) market.Kind {
	if strings.HasPrefix(symbol, "^") {
		return market.KindIndex
	}
	return market.KindQuote
}

// ensureLocked adds an unknown symbol with a price derived from its name.
func (b *quoteBook) ensureLocked(symbol string, now time.Time) *quoteState {
	if qs, ok := b.quotes[symbol]; ok {
		return qs
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	price := 50 + float64(h.Sum32()%400000)/100
	qs := &quoteState{quote: api.Quote{Symbol: symbol, Price: price, UpdatedAt: now}, prevClose: price}
	b.quotes[symbol] = qs
	return qs
}

// get returns quotes for symbols in the given order, or every quote sorted
// by symbol when symbols is empty.
func (b *quoteBook) get(symbols []string, now time.Time) []market.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(symbols) == 0 {
		for s := range b.quotes {
			symbols = append(symbols, s)
		}
		slices.Sort(symbols)
	}
	out := make([]market.Entry, 0, len(symbols))
	for _, s := range symbols {
		qs := b.ensureLocked(s, now)
		if qs.quote.UpdatedAt.IsZero() {
			qs.quote.UpdatedAt = now
		}
		out = append(out, market.Entry{Kind: kindOf(s), Quote: qs.quote})
	}
	return out
}

// step moves every price by up to maxStep and returns the new quotes.
func (b *quoteBook) step(now time.Time) []market.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]market.Entry, 0, len(b.quotes))
	for _, qs := range b.quotes {
		move := (b.rng.Float64()*2 - 1) * maxStep
		price := math.Round(qs.quote.Price*(1+move)*100) / 100
		qs.quote.Price = price
		qs.quote.Change = math.Round((price-qs.prevClose)*100) / 100
		qs.quote.ChangePercent = math.Round((price-qs.prevClose)/qs.prevClose*10000) / 100
		qs.quote.UpdatedAt = now
		out = append(out, market.Entry{Kind: kindOf(qs.quote.Symbol), Quote: qs.quote})
	}
	slices.SortFunc(out, func(a, b market.Entry) int { return strings.Compare(a.Quote.Symbol, b.Quote.Symbol) })
	return out
}

// hub fans quote updates out to stream subscribers.
type hub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	symbols []string // empty = everything
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[*streamClient]struct{})}
}

func (h *hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) broadcast(e market.Entry) {
	h.mu.Lock()
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		if c.wants(e.Quote.Symbol) {
			c.sendEntry(e)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (c *streamClient) wants(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.symbols) == 0 || slices.Contains(c.symbols, symbol)
}

func (c *streamClient) subscribe(symbols []string) {
	c.mu.Lock()
	c.symbols = symbols
	c.mu.Unlock()
}

func (c *streamClient) sendEntry(e market.Entry) {
	data, err := json.Marshal(e.Quote)
	if err != nil {
		return
	}
	c.sendMessage(market.Message{Type: string(e.Kind), Data: data})
}

func (c *streamClient) sendError(msg string) {
	data, _ := json.Marshal(msg)
	c.sendMessage(market.Message{Type: "error", Data: data})
}

// sendMessage queues a frame. A subscriber too slow to drain its buffer
// is dropped.
func (c *streamClient) sendMessage(m market.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.closed = true
		close(c.send)
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &streamClient{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(c)
	go c.writePump()
	s.readPump(c)
}

// readPump handles subscribe frames until the connection ends.
func (s *Server) readPump(c *streamClient) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg market.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "subscribe" {
			c.sendError("expected a subscribe message")
			continue
		}
		symbols, err := market.NormalizeSymbols(msg.Symbols)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		c.subscribe(symbols)
		for _, e := range s.book.get(symbols, s.now()) {
			c.sendEntry(e)
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) quotes(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		var err error
		symbols, err = market.NormalizeSymbols(strings.Split(raw, ","))
		if err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
	}
	entries := s.book.get(symbols, s.now())
	out := make([]api.Quote, len(entries))
	for i, e := range entries {
		out[i] = e.Quote
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getWatchlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := append([]string{}, s.accountFor(r).watchlist...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.Watchlist{Symbols: list})
}

func (s *Server) addToWatchlist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}
	sym, err := market.NormalizeSymbol(body.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	s.mu.Lock()
	a := s.accountFor(r)
	if !slices.Contains(a.watchlist, sym) {
		a.watchlist = append(a.watchlist, sym)
	}
	list := append([]string{}, a.watchlist...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.Watchlist{Symbols: list})
}

func (s *Server) removeFromWatchlist(w http.ResponseWriter, r *http.Request) {
	sym, err := market.NormalizeSymbol(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	s.mu.Lock()
	a := s.accountFor(r)
	a.watchlist = slices.DeleteFunc(a.watchlist, func(x string) bool { return x == sym })
	list := append([]string{}, a.watchlist...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.Watchlist{Symbols: list})
}
