package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashCanonicalDeterminism(t *testing.T) {
	bindings := IRObject{
		"person_id": IRString("person-1"),
		"age":       IRInt(67),
	}

	hash1, err := HashCanonical(DomainBinding, bindings)
	require.NoError(t, err)

	hash2, err := HashCanonical(DomainBinding, bindings)
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2, "HashCanonical must be deterministic")
	assert.Len(t, hash1, 64, "SHA-256 hex is 64 characters")
}

func TestHashCanonicalChangesWithContent(t *testing.T) {
	bindings1 := IRObject{"person_id": IRString("person-1")}
	bindings2 := IRObject{"person_id": IRString("person-2")}

	hash1 := MustHashCanonical(DomainBinding, bindings1)
	hash2 := MustHashCanonical(DomainBinding, bindings2)

	assert.NotEqual(t, hash1, hash2, "Different content must produce different hash")
}

func TestHashCanonicalDomainSeparationPreventsCollision(t *testing.T) {
	obj := IRObject{"fact_type": IRString("person"), "field": IRString("age")}

	alphaHash := MustHashCanonical(DomainAlphaNode, obj)
	bindingHash := MustHashCanonical(DomainBinding, obj)

	assert.NotEqual(t, alphaHash, bindingHash, "Different domains must produce different hashes")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" must not equal "foob" + 0x00 + "ar"
	hash1 := hashWithDomain("foo", []byte("bar"))
	hash2 := hashWithDomain("foob", []byte("ar"))

	assert.NotEqual(t, hash1, hash2, "Null separator must prevent boundary confusion")
}

func TestHashCanonicalKeyOrderingIndependence(t *testing.T) {
	args1 := IRObject{"zebra": IRInt(1), "alpha": IRInt(2)}
	args2 := IRObject{"alpha": IRInt(2), "zebra": IRInt(1)}

	hash1 := MustHashCanonical(DomainAlphaNode, args1)
	hash2 := MustHashCanonical(DomainAlphaNode, args2)

	assert.Equal(t, hash1, hash2, "Key ordering must not affect the hash regardless of insertion order")
}

func TestHashCanonicalEmptyObject(t *testing.T) {
	hash := MustHashCanonical(DomainAlphaNode, IRObject{})
	assert.Len(t, hash, 64)
}

func TestHashCanonicalNestedStructure(t *testing.T) {
	obj := IRObject{
		"nested": IRObject{
			"deep": IRArray{
				IRInt(1),
				IRString("two"),
				IRObject{"value": IRBool(true)},
			},
		},
		"simple": IRString("test"),
	}

	hash1 := MustHashCanonical(DomainBinding, obj)
	hash2 := MustHashCanonical(DomainBinding, obj)

	assert.Equal(t, hash1, hash2, "Nested structures must hash deterministically")
}

func TestHashCanonicalRejectsFloat(t *testing.T) {
	_, err := HashCanonical(DomainAlphaNode, map[string]any{"x": 1.5})
	assert.Error(t, err, "floats are forbidden in canonical JSON")
}

func TestMustHashCanonicalPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustHashCanonical(DomainAlphaNode, map[string]any{"x": 1.5})
	})
}

func TestMustHashCanonicalDoesNotPanicOnValidInput(t *testing.T) {
	assert.NotPanics(t, func() {
		MustHashCanonical(DomainAlphaNode, IRObject{})
	})
}

func TestHashHexEncoding(t *testing.T) {
	hash := MustHashCanonical(DomainAlphaNode, IRObject{"x": IRInt(1)})

	for _, c := range hash {
		valid := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, valid, "Hash should only contain hex characters, got: %c", c)
	}
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "rules/alpha/v1", DomainAlphaNode)
	assert.Equal(t, "rules/harness/binding/v1", DomainBinding)
}
