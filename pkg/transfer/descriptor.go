package transfer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// URLKind distinguishes object-store URLs from plain HTTP sources.
type URLKind int

const (
	// KindObjectStore is a store/bucket/key location (s3://bucket/key).
	KindObjectStore URLKind = iota
	// KindHTTP is a plain HTTP(S) URL that must be fetched over the network.
	KindHTTP
)

// ObjectURL is a parsed source or destination location.
// Only one of the two shapes is populated, selected by Kind.
type ObjectURL struct {
	Kind   URLKind
	Store  string // store family, e.g. "s3"
	Bucket string
	Key    string
	Region string // region hint when derivable from the raw URL
	HTTP   string // raw URL for KindHTTP
}

// virtualHostedRe matches bucket.s3.region.amazonaws.com style hosts so that
// HTTP mirrors of S3 buckets can be promoted to object-store URLs.
var virtualHostedRe = regexp.MustCompile(`^([a-z0-9.\-]+)\.s3[.-]([a-z0-9\-]+)\.amazonaws\.com$`)

// pathStyleRe matches s3.region.amazonaws.com hosts (bucket in the path).
var pathStyleRe = regexp.MustCompile(`^s3[.-]([a-z0-9\-]+)\.amazonaws\.com$`)

// ParseObjectURL normalizes a raw identifier into an ObjectURL.
// Recognized shapes: s3://bucket/key, virtual-hosted and path-style
// S3 HTTP URLs (promoted to object-store URLs with a region hint), and
// any other http(s) URL (kept as KindHTTP).
func ParseObjectURL(raw string) (ObjectURL, error) {
	if strings.TrimSpace(raw) == "" {
		return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: "empty identifier"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: err.Error()}
	}

	switch u.Scheme {
	case "s3":
		bucket := u.Host
		key := strings.TrimPrefix(u.Path, "/")
		if bucket == "" {
			return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: "missing bucket"}
		}
		return ObjectURL{Kind: KindObjectStore, Store: "s3", Bucket: bucket, Key: key}, nil

	case "http", "https":
		if m := virtualHostedRe.FindStringSubmatch(u.Host); m != nil {
			key := strings.TrimPrefix(u.Path, "/")
			if key == "" {
				return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: "missing object key"}
			}
			return ObjectURL{Kind: KindObjectStore, Store: "s3", Bucket: m[1], Key: key, Region: m[2]}, nil
		}
		if m := pathStyleRe.FindStringSubmatch(u.Host); m != nil {
			parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
			if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
				return ObjectURL{Kind: KindObjectStore, Store: "s3", Bucket: parts[0], Key: parts[1], Region: m[1]}, nil
			}
			return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: "missing bucket or key"}
		}
		if u.Host == "" {
			return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: "missing host"}
		}
		return ObjectURL{Kind: KindHTTP, HTTP: raw}, nil

	default:
		return ObjectURL{}, &InvalidDescriptorError{Raw: raw, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
}

// IsObjectStore reports whether the URL points into an object store.
func (u ObjectURL) IsObjectStore() bool {
	return u.Kind == KindObjectStore
}

// String renders the URL in the form the bulk tool understands.
func (u ObjectURL) String() string {
	if u.Kind == KindHTTP {
		return u.HTTP
	}
	return u.Store + "://" + u.Bucket + "/" + u.Key
}

// Join returns a copy of the URL with key appended under the current key,
// treating the current key as a prefix.
func (u ObjectURL) Join(key string) ObjectURL {
	joined := u
	prefix := strings.TrimSuffix(u.Key, "/")
	key = strings.TrimPrefix(key, "/")
	if prefix == "" {
		joined.Key = key
	} else {
		joined.Key = prefix + "/" + key
	}
	return joined
}

// SourceSpec is one raw source identifier with an optional size hint.
type SourceSpec struct {
	Raw      string
	SizeHint int64 // 0 = unknown
}

// TransferDescriptor is a normalized (source, destination) pair for one
// object. Immutable once built.
type TransferDescriptor struct {
	Source      ObjectURL
	Destination ObjectURL
	SizeHint    int64
}

// BuildDescriptors turns raw source identifiers and a destination prefix
// into ordered descriptors. The whole batch fails on the first malformed
// identifier; a bad request must not silently skip objects. Input order is
// preserved so callers can report progress positionally.
func BuildDescriptors(sources []SourceSpec, destinationPrefix string) ([]TransferDescriptor, error) {
	dest, err := ParseObjectURL(destinationPrefix)
	if err != nil {
		return nil, err
	}
	if !dest.IsObjectStore() {
		return nil, &InvalidDescriptorError{Raw: destinationPrefix, Reason: "destination must be an object-store URL"}
	}

	descriptors := make([]TransferDescriptor, 0, len(sources))
	for _, src := range sources {
		parsed, err := ParseObjectURL(src.Raw)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, TransferDescriptor{
			Source:      parsed,
			Destination: dest.Join(destinationKey(parsed)),
			SizeHint:    src.SizeHint,
		})
	}
	return descriptors, nil
}

// destinationKey picks the key layout under the destination prefix: object
// keys keep their full path, HTTP sources keep their URL path.
func destinationKey(src ObjectURL) string {
	if src.IsObjectStore() {
		return src.Key
	}
	u, err := url.Parse(src.HTTP)
	if err != nil || strings.TrimPrefix(u.Path, "/") == "" {
		return "download"
	}
	return strings.TrimPrefix(u.Path, "/")
}
