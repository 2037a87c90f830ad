package collector_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"QuoteKeeper/internal/collector"
)

func page(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, n := range names {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>1 000</td><td>up</td><td>5</td><td>0.5%%</td><td>01.10./17:05</td><td>200</td><td>995</td></tr>", n)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

type stubFetcher map[string]string

func (stubFetcher) Name() string { return "stub" }

func (s stubFetcher) Fetch(_ context.Context, src collector.Source) (string, error) {
	markup, ok := s[src.URL]
	if !ok {
		return "", errors.New("connection refused")
	}
	return markup, nil
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock HTTP client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "https://example.com/bet", req.URL.String())
			require.Equal(t, collector.DefaultUserAgent, req.Header.Get("User-Agent"))
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(page("OTP"))),
			}, nil
		}).
		Times(1)

	f := &collector.HTTPFetcher{Client: httpClient}

	// Act
	markup, err := f.Fetch(testContext(t), collector.Source{Exchange: "BET", URL: "https://example.com/bet"})

	// Assert
	require.NoError(t, err)
	require.Equal(t, page("OTP"), markup)
}

func TestHTTPFetcher_ErrStatus(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(&http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(bytes.NewBufferString("busy")),
		}, nil).
		Times(1)

	f := &collector.HTTPFetcher{Client: httpClient}
	markup, err := f.Fetch(testContext(t), collector.Source{URL: "https://example.com/bet"})
	require.ErrorContains(t, err, "status 503")
	require.Empty(t, markup)
}

func TestHTTPFetcher_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, errors.New("timeout")).
		Times(1)

	f := &collector.HTTPFetcher{Client: httpClient}
	_, err := f.Fetch(testContext(t), collector.Source{URL: "https://example.com/bet"})
	require.ErrorContains(t, err, "timeout")
}

func TestHTTPFetcher_ErrCreatingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	f := &collector.HTTPFetcher{Client: httpClient}
	_, err := f.Fetch(testContext(t), collector.Source{URL: string([]rune{0x7f})})
	require.Error(t, err)
}

func TestHTTPFetcher_Server(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, page("MOL"))
	}))
	defer srv.Close()

	f := collector.NewHTTPFetcher("", 5*time.Second)
	markup, err := f.Fetch(testContext(t), collector.Source{Exchange: "BET", URL: srv.URL})
	require.NoError(t, err)
	require.Contains(t, markup, "MOL")
}

func TestCollect_PartialFailure(t *testing.T) {
	t.Parallel()

	c := collector.NewCollector(stubFetcher{
		"zse": page("Podravka"),
		"bet": page("OTP", "MOL"),
	})
	res, err := c.Collect(testContext(t), []collector.Source{
		{Exchange: "Zagreb", URL: "zse"},
		{Exchange: "Prague", URL: "pse"},
		{Exchange: "Budapest", URL: "bet"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.OK)
	require.Equal(t, []string{"Prague"}, res.Failed)
	require.Len(t, res.Rows, 3)

	// sources are visited in exchange order
	require.Equal(t, "Budapest", res.Rows[0].Exchange())
	require.Equal(t, "OTP", res.Rows[0].Name())
	require.Equal(t, "Zagreb", res.Rows[2].Exchange())
}

func TestCollect_AllFailed(t *testing.T) {
	t.Parallel()

	c := collector.NewCollector(stubFetcher{})
	res, err := c.Collect(testContext(t), []collector.Source{{Exchange: "Budapest", URL: "bet"}})
	require.ErrorContains(t, err, "all sources failed")
	require.Equal(t, []string{"Budapest"}, res.Failed)
}

func TestCollect_NoSources(t *testing.T) {
	t.Parallel()

	_, err := collector.NewCollector(stubFetcher{}).Collect(testContext(t), nil)
	require.ErrorIs(t, err, collector.ErrNoSources)
}

func TestCollect_EmptyPageIsNotAFailure(t *testing.T) {
	t.Parallel()

	c := collector.NewCollector(stubFetcher{"bet": "<html><body>maintenance</body></html>"})
	res, err := c.Collect(testContext(t), []collector.Source{{Exchange: "Budapest", URL: "bet"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.OK)
	require.Empty(t, res.Rows)
}

func TestFileFetcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page("OTP")), 0o644))

	res, err := collector.NewCollector(collector.FileFetcher{}).Collect(testContext(t), []collector.Source{
		{Exchange: collector.NotSpecified, URL: path},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, collector.NotSpecified, res.Rows[0].Exchange())
}

func TestLoadLinks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "teletrader-links.csv")
	content := "Stock Exchange;URL\n" +
		"Budapest;https://example.com/bet\n" +
		"Prague;\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	links, err := collector.LoadLinks(path)
	require.NoError(t, err)
	require.Equal(t, []collector.Source{{Exchange: "Budapest", URL: "https://example.com/bet"}}, links)

	_, err = collector.LoadLinks(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
