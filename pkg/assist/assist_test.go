package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/glovelink/glovelink/pkg/transport"
)

const baseURL = "https://assist.example.com"

func signedToken(expiry time.Time) string {
	claims := jwt.MapClaims{"exp": expiry.Unix(), "sub": "glovelink"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	Expect(err).NotTo(HaveOccurred())
	return token
}

var _ = Describe("NewClient", func() {
	It("accepts an unexpired JWT", func() {
		_, err := NewClient(baseURL, signedToken(time.Now().Add(time.Hour)))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an expired JWT", func() {
		_, err := NewClient(baseURL, signedToken(time.Now().Add(-time.Hour)))
		Expect(errors.Is(err, ErrTokenExpired)).To(BeTrue())
	})

	It("passes opaque tokens through", func() {
		_, err := NewClient(baseURL, "not-a-jwt")
		Expect(err).NotTo(HaveOccurred())
	})

	It("allows an empty token", func() {
		_, err := NewClient(baseURL, "")
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Client", func() {
	var client *Client

	BeforeEach(func() {
		var err error
		client, err = NewClient(baseURL, "opaque-token")
		Expect(err).NotTo(HaveOccurred())
		httpmock.ActivateNonDefault(client.client)
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Describe("Summarize", func() {
		It("posts the text and returns the service reply", func() {
			httpmock.RegisterResponder("POST", baseURL+"/summarize",
				func(req *http.Request) (*http.Response, error) {
					Expect(req.Header.Get("Authorization")).To(Equal("Bearer opaque-token"))
					Expect(req.Header.Get("Content-Type")).To(Equal("application/json"))
					return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"text": "short version"})
				})

			reply, err := client.Summarize(context.Background(), "long session log")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("short version"))
		})

		It("serves repeats from the cache", func() {
			httpmock.RegisterResponder("POST", baseURL+"/summarize",
				httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"text": "cached"}))

			for i := 0; i < 3; i++ {
				reply, err := client.Summarize(context.Background(), "same input")
				Expect(err).NotTo(HaveOccurred())
				Expect(reply).To(Equal("cached"))
			}
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})

		It("marks service overload as temporary", func() {
			httpmock.RegisterResponder("POST", baseURL+"/summarize",
				httpmock.NewStringResponder(http.StatusServiceUnavailable, "try later"))

			_, err := client.Summarize(context.Background(), "log")
			var httpErr *HTTPError
			Expect(errors.As(err, &httpErr)).To(BeTrue())
			Expect(httpErr.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(transport.Temporary(err)).To(BeTrue())
		})

		It("marks a client error as permanent", func() {
			httpmock.RegisterResponder("POST", baseURL+"/summarize",
				httpmock.NewStringResponder(http.StatusForbidden, "no access"))

			_, err := client.Summarize(context.Background(), "log")
			Expect(transport.Temporary(err)).To(BeFalse())
			Expect(err.Error()).To(Equal("no access"))
		})

		It("rejects oversized responses", func() {
			httpmock.RegisterResponder("POST", baseURL+"/summarize",
				httpmock.NewStringResponder(http.StatusOK, strings.Repeat("x", MaxResponseLength+1)))

			_, err := client.Summarize(context.Background(), "log")
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed response bodies", func() {
			httpmock.RegisterResponder("POST", baseURL+"/summarize",
				httpmock.NewStringResponder(http.StatusOK, "not json"))

			_, err := client.Summarize(context.Background(), "log")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Translate", func() {
		It("sends the target language", func() {
			httpmock.RegisterResponder("POST", baseURL+"/translate",
				func(req *http.Request) (*http.Response, error) {
					var payload map[string]string
					Expect(json.NewDecoder(req.Body).Decode(&payload)).To(Succeed())
					Expect(payload["target"]).To(Equal("fr"))
					Expect(payload["text"]).To(Equal("hello"))
					return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"text": "bonjour"})
				})

			reply, err := client.Translate(context.Background(), "hello", "fr")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("bonjour"))
		})

		It("caches per endpoint and payload", func() {
			httpmock.RegisterResponder("POST", baseURL+"/translate",
				httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"text": "hola"}))

			_, err := client.Translate(context.Background(), "hello", "es")
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Translate(context.Background(), "hello", "fr")
			Expect(err).NotTo(HaveOccurred())
			Expect(httpmock.GetTotalCallCount()).To(Equal(2))
		})
	})
})

var _ = Describe("cache", func() {
	It("evicts the oldest entry once full", func() {
		client, err := NewClient(baseURL, "")
		Expect(err).NotTo(HaveOccurred())
		client.maxEntries = 2

		client.store("a", "1")
		client.store("b", "2")
		client.store("c", "3")

		Expect(client.cache).NotTo(HaveKey("a"))
		Expect(client.cache).To(HaveKey("b"))
		Expect(client.cache).To(HaveKey("c"))
	})
})
