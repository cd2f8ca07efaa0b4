package php

import (
	"reflect"
	"sort"
	"testing"
)

func sorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func TestGetExtended(t *testing.T) {
	got := GetExtended("class UserController extends Controller {")
	if !reflect.DeepEqual(got, []string{"Controller"}) {
		t.Fatalf("expected [Controller], got %v", got)
	}

	got = GetExtended("<?php\ninterface Repo extends Countable, ArrayAccess {}\n")
	if !reflect.DeepEqual(sorted(got), []string{"ArrayAccess", "Countable"}) {
		t.Fatalf("expected interface multi-extends, got %v", got)
	}
}

func TestGetImplemented(t *testing.T) {
	got := GetImplemented("<?php\nenum Suit: string implements HasLabel, JsonSerializable {}\n")
	if !reflect.DeepEqual(sorted(got), []string{"HasLabel", "JsonSerializable"}) {
		t.Fatalf("unexpected implements list %v", got)
	}
}

func TestGetFromFunctionParameters(t *testing.T) {
	got := GetFromFunctionParameters("<?php\nfunction handle(Request $request, Response $response) {}\n")
	if !reflect.DeepEqual(sorted(got), []string{"Request", "Response"}) {
		t.Fatalf("expected exactly Request and Response, got %v", got)
	}
}

func TestGetFromFunctionParameters_TypeForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"scalars only", "function f(int $a, string $b, ?array $c) {}", []string{}},
		{"nullable", "function f(?User $u) {}", []string{"User"}},
		{"union", "function f(User|Admin $u) {}", []string{"Admin", "User"}},
		{"intersection", "function f(Countable&Traversable $c) {}", []string{"Countable", "Traversable"}},
		{"dnf", "function f((Aa&Bb)|Cc $x) {}", []string{"Aa", "Bb", "Cc"}},
		{"variadic", "function f(Item ...$items) {}", []string{"Item"}},
		{"by reference", "function f(Bag &$bag) {}", []string{"Bag"}},
		{"promoted", "public function __construct(private readonly Mailer $mailer, protected(set) Clock $clock) {}", []string{"Clock", "Mailer"}},
		{"attribute before parameter", "function f(#[SensitiveParameter] Secret $s, #[Inject('x')] Logger $l) {}", []string{"Logger", "Secret"}},
		{"default with call", "function f(Config $c = new Config(1, 2), Flag $f = Flag::On) {}", []string{"Config", "Flag"}},
		{"closure and arrow fn", "$a = function (Event $e) use ($x) {}; $b = fn(Job $j) => 1;", []string{"Event", "Job"}},
		{"qualified names are skipped", `function f(\App\User $u, Models\Post $p) {}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sorted(GetFromFunctionParameters("<?php\n" + tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPasses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pass  func(*Source) []string
		want  []string
	}{
		{"return type", "function f(): ?Response {}", (*Source).GetReturnTypes, []string{"Response"}},
		{"return union", "function f(): Foo|Bar|null {}", (*Source).GetReturnTypes, []string{"Bar", "Foo"}},
		{"closure use then return", "$f = function () use ($a): Result {};", (*Source).GetReturnTypes, []string{"Result"}},
		{"property", "class A {\n    private ?Logger $logger;\n    public static Cache|Store $cache;\n}", (*Source).GetPropertyTypes, []string{"Cache", "Logger", "Store"}},
		{"property after attribute", "#[ORM\\ManyToOne] private Customer $customer;", (*Source).GetPropertyTypes, []string{"Customer"}},
		{"property after brace", "class A { private Foo $foo; }", (*Source).GetPropertyTypes, []string{"Foo"}},
		{"property after semicolon", "class A { private Foo $foo; protected Bar $bar; }", (*Source).GetPropertyTypes, []string{"Bar", "Foo"}},
		{"new", "$a = new Carbon(); $b = new \\DateTime();", (*Source).GetInstantiated, []string{"Carbon"}},
		{"static access", "$a = Str::slug($x); $b = self::X; $c = $obj::class; $d = Cfg::class;", (*Source).GetStaticAccess, []string{"Cfg", "Str"}},
		{"instanceof", "if ($a instanceof Model) {}", (*Source).GetInstanceOf, []string{"Model"}},
		{"multi catch", "try {} catch (NotFound|Forbidden $e) {} catch (Boom) {}", (*Source).GetCaught, []string{"Boom", "Forbidden", "NotFound"}},
		{"attributes", "#[Route('/x', methods: ['GET']), Middleware]\nfunction a() {}", (*Source).GetAttributes, []string{"Middleware", "Route"}},
		{"typed constant", "class A { const Status DEFAULT = Status::On; const int MAX = 3; }", (*Source).GetTypedConstants, []string{"Status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sorted(tt.pass(NewSource("<?php\n" + tt.input)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetTraitUses(t *testing.T) {
	input := `<?php
namespace App;

use App\Contracts\Shape;

class Circle implements Shape
{
    use HasArea, Loggable;
    use Cached {
        Cached::get as protected;
    }

    public function area()
    {
        return array_map(function ($x) use ($y) {
            return $x;
        }, []);
    }
}
`
	got := sorted(NewSource(input).GetTraitUses())
	want := []string{"Cached", "HasArea", "Loggable"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGetFromPhpDoc(t *testing.T) {
	input := `<?php
/**
 * Free text mentions Ghost and is ignored.
 *
 * @template T of Entity
 * @param Collection<int, T> $items
 * @param \App\Models\User|null $user
 * @return Paginator[]
 * @throws ValidationException
 * @property-read Clock $clock
 * @psalm-var Shape $shape
 * @method static Builder query(Scope $scope)
 * @mixin Eloquent
 * @see https://example.com/Nope
 * @see Helper
 */
function f() {}
`
	got := sorted(GetFromPhpDoc(input))
	want := []string{"Builder", "Clock", "Collection", "Eloquent", "Entity", "Helper", "Paginator", "Scope", "Shape", "User", "ValidationException"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDetectAll_ExcludesReserved(t *testing.T) {
	input := `<?php
class A {
    public function f(String $a, Int $b, Mixed $c, Self $d, Iterable $e): Void {}
    public function g(): static { return new static(); }
}
`
	for _, name := range DetectAll(input) {
		if IsReservedType(name) {
			t.Fatalf("reserved token %q leaked into %v", name, DetectAll(input))
		}
	}
}

func TestIsReservedType(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"String", true},
		{"Iterable", true},
		{"Callable", true},
		{"Static", true},
		{"string", false},
		{"STRING", false},
		{"Stringable", false},
		{"User", false},
	}
	for _, tt := range tests {
		if got := IsReservedType(tt.name); got != tt.want {
			t.Errorf("IsReservedType(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDetectAll_CommentEndsAtCloseTag(t *testing.T) {
	got := DetectAll("<?php\n// Baz::qux() ?> <?php new Qux;\n")
	if !reflect.DeepEqual(got, []string{"Qux"}) {
		t.Fatalf("expected [Qux], got %v", got)
	}
}

func TestDetectAll_StringsAndComments(t *testing.T) {
	input := `<?php
// new LineComment();
# new HashComment();
/* new BlockComment(); */
/**
 * new DocText();
 * @var DocTag
 */
$a = 'new SingleQuoted()';
$b = "new DoubleQuoted()";
$c = new RealClass();
`
	got := DetectAll(input)
	want := []string{"DocTag", "RealClass"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDetectAll_FullyQualifiedOnly(t *testing.T) {
	input := `<?php
$a = \App\Foo::class;
$b = new \App\Bar();
/** @var \App\Baz $c */
$c = make();
$d = Qux::make();
`
	got := DetectAll(input)
	if !reflect.DeepEqual(got, []string{"Qux"}) {
		t.Fatalf("expected only Qux, got %v", got)
	}
}

func TestDetectAll_Idempotent(t *testing.T) {
	input := "<?php\nclass A extends B implements C { public function f(D $d): E { return new F(); } }\n"
	first := DetectAll(input)
	second := DetectAll(input)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(first, []string{"B", "C", "D", "E", "F"}) {
		t.Fatalf("unexpected detection %v", first)
	}
}

func TestDetectAllWithPositions(t *testing.T) {
	input := "<?php\nnamespace App;\n\nuse App\\Http\\Request;\n\nclass A {\n    public function f(Request $r): Request { return Request::capture(); }\n}\n"
	got := DetectAllWithPositions(input)
	if len(got) != 3 {
		t.Fatalf("expected 3 occurrences, got %#v", got)
	}
	for _, occ := range got {
		if occ.Name != "Request" || occ.Line != 6 {
			t.Fatalf("unexpected occurrence %#v", occ)
		}
	}
	if got[0].Character != 22 {
		t.Fatalf("expected first occurrence at character 22, got %d", got[0].Character)
	}
	if input[got[0].Offset:got[0].Offset+len("Request")] != "Request" {
		t.Fatalf("offset %d does not point at the name", got[0].Offset)
	}
}

func TestDetectAllWithPositions_RuneColumns(t *testing.T) {
	input := "<?php\n$é = new Foo();\n"
	got := DetectAllWithPositions(input)
	if len(got) != 1 {
		t.Fatalf("expected one occurrence, got %#v", got)
	}
	if got[0].Line != 1 || got[0].Character != 9 {
		t.Fatalf("expected 1:9, got %d:%d", got[0].Line, got[0].Character)
	}
}

func TestHasPrefixReference(t *testing.T) {
	src := NewSource("<?php\nuse App\\Models;\n\n$u = Models\\User::find(1);\n")
	if !src.HasPrefixReference("Models") {
		t.Fatal("expected Models\\ prefix to count as a reference")
	}
	if NewSource("<?php\n$u = OldModels\\User::find(1);\n").HasPrefixReference("Models") {
		t.Fatal("OldModels\\ must not match the Models prefix")
	}
	if NewSource("<?php\nuse App\\Models;\n").HasPrefixReference("Models") {
		t.Fatal("the use line itself is not a reference")
	}
}
