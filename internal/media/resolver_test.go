package media

import (
	"context"
	"errors"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solhealth/match-booking/internal/solhealth"
)

const bucketURL = "https://therapists-personal-data.s3.us-east-2.amazonaws.com"

type mockPresigner struct {
	keys    []string
	expires time.Duration
	err     error
}

func (m *mockPresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	m.expires = opts.Expires
	m.keys = append(m.keys, *in.Key)
	if m.err != nil {
		return nil, m.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		email string
		kind  Kind
		want  string
	}{
		{"dana@solhealth.co", Image, "images/dana@solhealth.co"},
		{"dana@solhealth.co", WelcomeVideo, "videos/dana@solhealth.co_welcome"},
		{"jdoe@binghamton.edu", WelcomeVideo, "videos/jdoe@binghamton.edu_welcome"},
		{"dana@solhealth.co", IntroVideo, "videos/dana@solhealth.co_intro"},
		{"", Image, ""},
		{"dana@solhealth.co", Kind("audio"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectKey(tt.email, tt.kind), "%s/%s", tt.email, tt.kind)
	}
}

func TestResolverPublicURLs(t *testing.T) {
	r := NewResolver(Config{Bucket: "therapists-personal-data", BucketURL: bucketURL + "/"}, nil)
	ctx := context.Background()

	assert.Equal(t, bucketURL+"/images/dana@solhealth.co", r.URL(ctx, "dana@solhealth.co", Image))
	assert.Equal(t, "", r.URL(ctx, "", Image))
	assert.Equal(t, "https://cdn.example.com/x.jpg", r.Resolve(ctx, "https://cdn.example.com/x.jpg", "dana@solhealth.co", Image))
	assert.Equal(t, bucketURL+"/videos/dana@solhealth.co_intro", r.Resolve(ctx, "videos/raw-key", "dana@solhealth.co", IntroVideo))
}

func TestResolverPrefersCloudFront(t *testing.T) {
	r := NewResolver(Config{BucketURL: bucketURL, CloudFrontURL: "https://d111.cloudfront.net"}, nil)
	assert.Equal(t, "https://d111.cloudfront.net/images/a@b.co", r.URL(context.Background(), "a@b.co", Image))
}

func TestResolverPresigns(t *testing.T) {
	p := &mockPresigner{}
	r := NewResolver(Config{Bucket: "therapists-personal-data", BucketURL: bucketURL, Presigner: p, PresignTTL: 5 * time.Minute}, nil)

	got := r.URL(context.Background(), "dana@solhealth.co", WelcomeVideo)
	assert.Equal(t, "https://signed.example.com/videos/dana@solhealth.co_welcome?X-Amz-Signature=abc", got)
	require.Len(t, p.keys, 1)
	assert.Equal(t, 5*time.Minute, p.expires)
}

func TestResolverPresignFailureFallsBack(t *testing.T) {
	p := &mockPresigner{err: errors.New("no credentials")}
	r := NewResolver(Config{Bucket: "therapists-personal-data", BucketURL: bucketURL, Presigner: p}, nil)

	assert.Equal(t, bucketURL+"/images/dana@solhealth.co", r.URL(context.Background(), "dana@solhealth.co", Image))
}

func TestResolverApplyAll(t *testing.T) {
	r := NewResolver(Config{BucketURL: bucketURL}, nil)
	result := &solhealth.MatchResult{
		Therapists: []solhealth.TherapistMatch{
			{Therapist: solhealth.Therapist{ID: "t1", Email: "dana@solhealth.co", CalendarEmail: "cal@solhealth.co"}},
			{Therapist: solhealth.Therapist{ID: "t2", Email: "lee@solhealth.co", ImageLink: "https://signed.example.com/lee"}},
		},
	}

	r.ApplyAll(context.Background(), result)

	first := result.Therapists[0].Therapist
	assert.Equal(t, bucketURL+"/images/dana@solhealth.co", first.ImageLink)
	assert.Equal(t, bucketURL+"/videos/dana@solhealth.co_welcome", first.WelcomeVideoLink)
	assert.Equal(t, bucketURL+"/videos/dana@solhealth.co_intro", first.GreetingsVideoLink)
	assert.Equal(t, "https://signed.example.com/lee", result.Therapists[1].Therapist.ImageLink)

	var nilResolver *Resolver
	nilResolver.ApplyAll(context.Background(), result)
}
