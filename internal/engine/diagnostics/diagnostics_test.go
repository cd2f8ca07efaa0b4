package diagnostics

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"nsresolve/internal/engine/index"
	"nsresolve/internal/engine/php"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memDoc struct {
	uri     string
	version int64
	text    string
	onText  func()
}

func (d *memDoc) URI() string         { return d.uri }
func (d *memDoc) Version() int64      { return d.version }
func (d *memDoc) LineCount() int      { return len(strings.Split(d.text, "\n")) }
func (d *memDoc) LineAt(i int) string { return strings.Split(d.text, "\n")[i] }
func (d *memDoc) Text() string {
	if d.onText != nil {
		d.onText()
	}
	return d.text
}

type stubIndex struct {
	mu        sync.Mutex
	classes   map[string]bool
	indexed   bool
	gen       uint64
	listeners []func(index.Event)
}

func newStubIndex(classes ...string) *stubIndex {
	s := &stubIndex{classes: map[string]bool{}, indexed: true}
	for _, c := range classes {
		s.classes[c] = true
	}
	return s
}

func (s *stubIndex) Has(fqcn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes[fqcn]
}

func (s *stubIndex) Indexed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexed
}

func (s *stubIndex) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *stubIndex) Subscribe(fn func(index.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = nil
	}
}

func (s *stubIndex) add(fqcn string) {
	s.mu.Lock()
	s.classes[fqcn] = true
	s.gen++
	fns := append([]func(index.Event){}, s.listeners...)
	gen := s.gen
	s.mu.Unlock()
	for _, fn := range fns {
		fn(index.Event{Kind: index.EventUpdated, Generation: gen})
	}
}

var allRules = Options{NotImported: true, NotUsed: true}

func TestCompute_ControllerScenario(t *testing.T) {
	doc := &memDoc{uri: "/ws/Foo.php", version: 1, text: "<?php\nclass Foo extends Controller {}"}
	got := Compute(doc, newStubIndex(), allRules)
	if len(got) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %#v", got)
	}
	d := got[0]
	if d.Kind != KindNotImported || d.ClassName != "Controller" || d.Line != 1 || d.Character != 18 || d.EndCharacter != 28 {
		t.Fatalf("unexpected diagnostic %#v", d)
	}
	if d.ID == "" {
		t.Fatal("diagnostics must carry an id")
	}
}

func TestCompute_NotImported(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		index  []string
		ignore []string
		want   []string
	}{
		{
			name:  "resolvable in the current namespace",
			text:  "<?php\nnamespace App;\n\nclass Foo extends Base {}\n",
			index: []string{`App\Base`},
		},
		{
			name: "builtin without namespace",
			text: "<?php\n$e = new Exception('x');\n",
		},
		{
			name: "builtin inside a namespace is reported",
			text: "<?php\nnamespace App;\n$e = new Exception('x');\n",
			want: []string{"Exception"},
		},
		{
			name: "imported and declared names",
			text: "<?php\nnamespace App;\nuse Lib\\Base;\nclass Foo extends Base {}\nclass Bar extends Foo {}\n",
		},
		{
			name:   "ignore list",
			text:   "<?php\nnamespace App;\nclass Foo extends Model {}\n",
			ignore: []string{"Model"},
		},
		{
			name: "one diagnostic per occurrence",
			text: "<?php\nnamespace App;\nfunction f(Request $a): Request { return new Request(); }\n",
			want: []string{"Request", "Request", "Request"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &memDoc{uri: "/ws/a.php", version: 1, text: tt.text}
			got := Compute(doc, newStubIndex(tt.index...), Options{NotImported: true, IgnoreList: tt.ignore})
			var names []string
			for _, d := range got {
				names = append(names, d.ClassName)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("expected %v, got %v", tt.want, names)
			}
		})
	}
}

func TestCompute_SuppressedWhileIndexing(t *testing.T) {
	doc := &memDoc{uri: "/ws/Foo.php", version: 1, text: "<?php\nclass Foo extends Controller {}"}
	got := Compute(doc, newStubIndex(), Options{NotImported: true, Indexed: func() bool { return false }})
	if len(got) != 0 {
		t.Fatalf("expected no findings while indexing, got %#v", got)
	}
}

func TestCompute_NotUsed(t *testing.T) {
	text := "<?php\nnamespace App;\n\nuse App\\Models\\User;\nuse App\\Models;\nuse Psr\\Log\\LoggerInterface as Logger;\nuse function App\\helper;\n\nclass A {\n    public function f(): Models\\Post {}\n}\n"
	doc := &memDoc{uri: "/ws/A.php", version: 1, text: text}
	got := Compute(doc, newStubIndex(), Options{NotUsed: true})
	if len(got) != 2 {
		t.Fatalf("expected two unused imports, got %#v", got)
	}
	if got[0].ClassName != "User" || got[0].FQCN != `App\Models\User` || got[0].Line != 3 || got[0].Character != 0 || got[0].EndCharacter != 20 {
		t.Fatalf("unexpected first diagnostic %#v", got[0])
	}
	if got[1].ClassName != "Logger" || got[1].Line != 5 || got[1].Kind != KindNotUsed {
		t.Fatalf("unexpected second diagnostic %#v", got[1])
	}
}

func TestCompute_NotUsedIgnoresNonClassNames(t *testing.T) {
	tests := []struct {
		name string
		use  string
		body string
	}{
		{"property fetch", `use App\Models\User;`, "class A {\n    public function f() { return $this->User; }\n}\n"},
		{"constant name", `use App\Enums\Status;`, "class A { const Status = 1; }\n"},
		{"function name", `use App\Models\User;`, "function User() {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "<?php\nnamespace App;\n\n" + tt.use + "\n\n" + tt.body
			doc := &memDoc{uri: "/ws/A.php", version: 1, text: text}
			got := Compute(doc, newStubIndex(), Options{NotUsed: true})
			if len(got) != 1 || got[0].Kind != KindNotUsed {
				t.Fatalf("expected one unused import, got %#v", got)
			}
		})
	}
}

func TestUseRange_GroupMember(t *testing.T) {
	doc := &memDoc{text: "<?php\nuse App\\{Alpha, Beta as B};\n"}
	decl := []struct {
		name string
		want [2]int
	}{
		{"Alpha", [2]int{9, 14}},
		{"B", [2]int{24, 25}},
	}
	for _, tt := range decl {
		start, end := useRange(doc, 1, useFor(tt.name))
		if start != tt.want[0] || end != tt.want[1] {
			t.Errorf("%s: expected %v, got [%d %d]", tt.name, tt.want, start, end)
		}
	}
}

func useFor(className string) php.UseStatement {
	for _, use := range php.ParseUseLine(`use App\{Alpha, Beta as B};`) {
		if use.ClassName == className {
			return use
		}
	}
	return php.UseStatement{}
}

func TestEngine_DebounceAndVersionStamp(t *testing.T) {
	idx := newStubIndex()
	var published atomic.Int32
	results := make(chan []Diagnostic, 8)
	e := NewEngine(idx, EngineOptions{Debounce: 20 * time.Millisecond, NotImported: true, NotUsed: true}, func(_ string, diags []Diagnostic) {
		published.Add(1)
		results <- diags
	})
	defer e.Close()

	doc := &memDoc{uri: "/ws/Foo.php", version: 1, text: "<?php\nnamespace App;\nclass Foo extends Controller {}"}
	for i := 0; i < 3; i++ {
		e.Update(doc)
	}
	select {
	case diags := <-results:
		if len(diags) != 1 || diags[0].ClassName != "Controller" {
			t.Fatalf("unexpected diagnostics %#v", diags)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced diagnostics never published")
	}
	time.Sleep(60 * time.Millisecond)
	if published.Load() != 1 {
		t.Fatalf("expected a single publish for a burst of updates, got %d", published.Load())
	}

	if got := e.Refresh(context.Background(), doc.uri); len(got) != 1 || published.Load() != 1 {
		t.Fatalf("unchanged version must reuse the last result, got %d publishes", published.Load())
	}

	idx.add(`App\Controller`)
	select {
	case diags := <-results:
		if len(diags) != 0 {
			t.Fatalf("expected the index update to clear the finding, got %#v", diags)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("index event did not trigger a recomputation")
	}
	if got := e.Diagnostics(doc.uri); len(got) != 0 {
		t.Fatalf("expected no stored diagnostics, got %#v", got)
	}

	e.Untrack(doc.uri)
	if diags := <-results; diags != nil {
		t.Fatalf("untrack must publish an empty result, got %#v", diags)
	}
}

func TestEngine_DiscardsStaleResults(t *testing.T) {
	idx := newStubIndex()
	var published atomic.Int32
	e := NewEngine(idx, EngineOptions{Debounce: time.Hour, NotImported: true}, func(string, []Diagnostic) {
		published.Add(1)
	})
	defer e.Close()

	newer := &memDoc{uri: "/ws/A.php", version: 2, text: "<?php\n"}
	older := &memDoc{uri: "/ws/A.php", version: 1, text: "<?php\nclass A extends B {}"}
	older.onText = func() { e.Update(newer) }

	if got := e.Activate(context.Background(), older); got != nil {
		t.Fatalf("stale computation must be discarded, got %#v", got)
	}
	if published.Load() != 0 {
		t.Fatal("stale computation must not be published")
	}
	if got := e.Refresh(context.Background(), "/ws/A.php"); len(got) != 0 || published.Load() != 1 {
		t.Fatalf("expected the newer snapshot to publish, got %#v", got)
	}
}
