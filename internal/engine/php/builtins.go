package php

// reservedTypes are scalar and pseudo types that never need an import, in
// the capitalised form a name must have to reach the detector at all.
var reservedTypes = toSet(
	"String", "Int", "Float", "Bool", "Array", "Object", "Null", "Void", "Never",
	"Mixed", "Self", "Static", "Parent", "True", "False", "Iterable", "Callable",
)

// IsReservedType reports whether name is a scalar/pseudo type keyword. The
// match is exact: `STRING` is left to the caller as an ordinary class name.
func IsReservedType(name string) bool {
	return reservedTypes[name]
}

// builtinClasses lists classes and interfaces that live in PHP's global
// namespace out of the box (core, SPL, date, reflection, intl, dom, pdo).
var builtinClasses = toSet(
	// core
	"stdClass", "Closure", "Generator", "WeakMap", "WeakReference", "Fiber", "Attribute",
	"ReturnTypeWillChange", "AllowDynamicProperties", "SensitiveParameter", "Override",
	"ArrayAccess", "Countable", "Iterator", "IteratorAggregate", "Traversable", "Stringable",
	"JsonSerializable", "Serializable", "UnitEnum", "BackedEnum", "Directory", "__PHP_Incomplete_Class",
	// errors and exceptions
	"Throwable", "Exception", "Error", "ErrorException", "TypeError", "ValueError",
	"ArgumentCountError", "ArithmeticError", "DivisionByZeroError", "AssertionError",
	"CompileError", "ParseError", "UnhandledMatchError", "FiberError", "JsonException",
	"RuntimeException", "LogicException", "InvalidArgumentException", "DomainException",
	"LengthException", "OutOfRangeException", "OutOfBoundsException", "OverflowException",
	"RangeException", "UnderflowException", "UnexpectedValueException",
	"BadFunctionCallException", "BadMethodCallException",
	// spl
	"ArrayObject", "ArrayIterator", "RecursiveArrayIterator", "SplObjectStorage", "SplStack",
	"SplQueue", "SplFixedArray", "SplPriorityQueue", "SplHeap", "SplMinHeap", "SplMaxHeap",
	"SplDoublyLinkedList", "SplFileInfo", "SplFileObject", "SplTempFileObject", "SplSubject",
	"SplObserver", "DirectoryIterator", "FilesystemIterator", "RecursiveDirectoryIterator",
	"GlobIterator", "RecursiveIteratorIterator", "IteratorIterator", "LimitIterator",
	"CachingIterator", "CallbackFilterIterator", "FilterIterator", "InfiniteIterator",
	"NoRewindIterator", "AppendIterator", "MultipleIterator", "RegexIterator", "EmptyIterator",
	"SeekableIterator", "OuterIterator", "RecursiveIterator",
	// date
	"DateTime", "DateTimeImmutable", "DateTimeInterface", "DateTimeZone", "DateInterval", "DatePeriod",
	// reflection
	"ReflectionClass", "ReflectionObject", "ReflectionMethod", "ReflectionProperty",
	"ReflectionFunction", "ReflectionParameter", "ReflectionNamedType", "ReflectionUnionType",
	"ReflectionEnum", "ReflectionException", "ReflectionAttribute",
	// extensions commonly compiled in
	"PDO", "PDOStatement", "PDOException", "SimpleXMLElement", "DOMDocument", "DOMElement",
	"DOMNode", "DOMXPath", "XMLReader", "XMLWriter", "IntlDateFormatter", "NumberFormatter",
	"Collator", "Locale", "CURLFile", "ZipArchive", "SessionHandler", "SessionHandlerInterface",
)

// IsBuiltinClass reports whether name is a class shipped with PHP itself.
func IsBuiltinClass(name string) bool {
	return builtinClasses[name]
}

func toSet(items ...string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item] = true
	}
	return out
}
