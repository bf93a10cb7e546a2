// Package keys builds cache keys from a namespace and a query descriptor.
//
// A key has the form
//
//	<namespace>:<base64url(canonical JSON of query)>
//
// The query is canonicalised before encoding: it is marshalled to JSON,
// decoded into generic maps and slices (numbers kept verbatim) and marshalled
// again, which sorts every object's keys. Two queries that describe the same
// JSON document therefore produce the same key no matter how they were built:
//
//	keys.Encode("jobTemplates", map[string]any{"status": "pending", "id": 1})
//	keys.Encode("jobTemplates", struct {
//		ID     int    `json:"id"`
//		Status string `json:"status"`
//	}{1, "pending"})
//
// both return "jobTemplates:eyJpZCI6MSwic3RhdHVzIjoicGVuZGluZyJ9".
package keys

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Separator joins the namespace and the encoded query.
const Separator = ":"

var (
	// ErrEmptyNamespace is returned when Encode is given no namespace.
	ErrEmptyNamespace = errors.New("keys: empty namespace")

	// ErrUnencodable is returned when the query cannot be represented as JSON.
	ErrUnencodable = errors.New("keys: query is not JSON-encodable")

	// ErrMalformedKey is returned by Decode for strings Encode did not produce.
	ErrMalformedKey = errors.New("keys: malformed key")
)

var encoding = base64.RawURLEncoding

// Encode returns the deterministic key for (namespace, query).
func Encode(namespace string, query any) (string, error) {
	if namespace == "" {
		return "", ErrEmptyNamespace
	}
	canon, err := Canonical(query)
	if err != nil {
		return "", err
	}
	return namespace + Separator + encoding.EncodeToString(canon), nil
}

// MustEncode is Encode for queries known to be encodable; it panics otherwise.
func MustEncode(namespace string, query any) string {
	k, err := Encode(namespace, query)
	if err != nil {
		panic(err)
	}
	return k
}

// Canonical returns the canonical JSON bytes of query.
func Canonical(query any) ([]byte, error) {
	raw, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(ErrUnencodable, err.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, errors.Wrap(ErrUnencodable, err.Error())
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Wrap(ErrUnencodable, err.Error())
	}
	return out, nil
}

// Decode splits a key produced by Encode into its namespace and canonical JSON.
func Decode(key string) (namespace string, query []byte, err error) {
	i := strings.LastIndex(key, Separator)
	if i <= 0 {
		return "", nil, errors.Wrapf(ErrMalformedKey, "%q", key)
	}
	query, err = encoding.DecodeString(key[i+1:])
	if err != nil {
		return "", nil, errors.Wrapf(ErrMalformedKey, "%q: %v", key, err)
	}
	return key[:i], query, nil
}

// Namespace returns the namespace part of a key produced by Encode,
// or the whole key when it has no separator.
func Namespace(key string) string {
	if i := strings.LastIndex(key, Separator); i > 0 {
		return key[:i]
	}
	return key
}
