package mapper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wippyai/docmap"
)

type Address struct {
	City string
}

type Person struct {
	Name          string
	Age           int
	Tags          []string
	InternalCache map[string]string `doc:",ignore"`
	Address       *Address
}

type Mixed struct {
	Visible string
	hidden  string
	Skip    string `doc:"-"`
	Ignored string `doc:",ignore"`
	Handler func()
	Renamed string `doc:"alias"`
	Bad     string `doc:",bogus"`
}

type Model struct {
	ID      docmap.ID `doc:"_id"`
	Created time.Time
}

type Audited struct {
	Model
	Editor string
}

type Article struct {
	Audited
	Title string
}

type Base struct {
	Name string
	Kind string
}

type Derived struct {
	Base
	Name string
}

type Left struct{ Label string }
type Right struct{ Label string }

type Ambiguous struct {
	Left
	Right
	Size int
}

type Meta struct {
	Version int
}

type Envelope struct {
	*Meta
	Body string
}

type Record struct {
	ID     docmap.ID
	At     time.Time
	Parent *docmap.ID
	IDs    []docmap.ID `doc:"ids"`
}

type Numbers struct {
	Small  int8
	Count  int
	Ratio  float64
	Unsign uint16
	Pair   [2]int
	Grid   [][]int
	Scores map[string]int
}

type Gauge struct {
	Level   float32
	Samples []float32
}

type Loose struct {
	Extra   any
	Payload *docmap.Document
	Flag    *bool
}

type Temperature struct {
	Celsius  float64
	setCalls int
}

func (t *Temperature) SetCelsius(v float64) {
	t.Celsius = v
	t.setCalls++
}

type Guarded struct {
	Level int
}

func (g *Guarded) SetLevel(v int) error {
	if v < 0 {
		return fmt.Errorf("negative level %d", v)
	}
	g.Level = v
	return nil
}

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Drawing struct {
	Main   Shape   `doc:",target=square"`
	Extras []Shape `doc:",target=square"`
}

type Coords [2]float64

type Spot struct {
	At Coords `doc:",method"`
}

type Point struct {
	X, Y int
}

func (p Point) MarshalDocument() (*docmap.Document, error) {
	return docmap.DocumentOf("coords", []any{int64(p.X), int64(p.Y)}), nil
}

func (p *Point) UnmarshalDocument(d *docmap.Document) error {
	v, ok := d.Get("coords")
	if !ok {
		return fmt.Errorf("coords missing")
	}
	seq, ok := v.([]any)
	if !ok || len(seq) != 2 {
		return fmt.Errorf("coords must hold two values")
	}
	p.X = int(seq[0].(int64))
	p.Y = int(seq[1].(int64))
	return nil
}

type Route struct {
	Name  string
	Stops []Point
}

type Rank struct {
	Level int
}

type Member struct {
	Rank Rank   `doc:",method"`
	Past []Rank `doc:",method"`
}

type Plain struct {
	V int
}

type HasPlain struct {
	P    Plain `doc:",method"`
	Name string
}

type Color struct {
	R, G, B uint8
}

func (c Color) MarshalDocValue() (any, error) {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}

func (c *Color) UnmarshalDocValue(_ docmap.Services, raw any) error {
	s, ok := raw.(string)
	if !ok || len(s) != 7 || s[0] != '#' {
		return fmt.Errorf("bad color %v", raw)
	}
	parts := [3]*uint8{&c.R, &c.G, &c.B}
	for i, p := range parts {
		n, err := strconv.ParseUint(s[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return err
		}
		*p = uint8(n)
	}
	return nil
}

type Palette struct {
	Primary Color   `doc:",method"`
	Others  []Color `doc:",method"`
}

type Bomb struct{}

func (Bomb) MarshalDocValue() (any, error) { panic("boom") }

type Armed struct {
	B    Bomb `doc:",method"`
	Name string
}

// saveLog records Save calls of Account values.
type saveLog struct {
	mu    sync.Mutex
	calls []docmap.SaveOptions
	fail  bool
	done  chan bool
}

func (l *saveLog) record(o docmap.SaveOptions) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, o)
}

func (l *saveLog) snapshot() []docmap.SaveOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]docmap.SaveOptions(nil), l.calls...)
}

type Account struct {
	ID    docmap.ID `doc:"_id"`
	Owner string
	log   *saveLog
}

func (a *Account) UniqueID() docmap.ID { return a.ID }

func (a *Account) Save(_ context.Context, opts ...docmap.SaveOption) bool {
	o := docmap.ApplySaveOptions(opts...)
	a.log.record(o)
	ok := !a.log.fail
	if o.Async {
		go func() {
			if o.OnComplete != nil {
				o.OnComplete(ok)
			}
			if a.log.done != nil {
				a.log.done <- ok
			}
		}()
		return true
	}
	if o.OnComplete != nil {
		o.OnComplete(ok)
	}
	return ok
}

type Wallet struct {
	Label   string
	Account *Account `doc:"account,method,cascade"`
}

type Ledger struct {
	Account *Account `doc:"account,cascade"`
}

type AsyncWallet struct {
	Account *Account `doc:"account,method,cascade=async"`
}

type Clock interface {
	Now() time.Time
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type Session struct {
	User    string
	Started time.Time
	clock   Clock
	raw     *docmap.Document
	withReg bool
}
