package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnproxy/pkg/selector"
)

func testCatalog() (selector.Catalog, []string) {
	catalog := selector.Catalog{
		"Japan":         {CountryLong: "Japan", Score: "10", Payload: "anA="},
		"United States": {CountryLong: "United States", Score: "20", Payload: "dXM="},
	}
	return catalog, catalog.Countries()
}

func TestChooseValidInput(t *testing.T) {
	catalog, order := testCatalog()
	var out bytes.Buffer

	country, record, err := New(strings.NewReader("2\n"), &out, 3).Choose(context.Background(), catalog, order)
	require.NoError(t, err)
	assert.Equal(t, "United States", country)
	assert.Equal(t, "dXM=", record.Payload)
	assert.NotContains(t, out.String(), invalidNotice)
}

func TestChooseRetriesAfterInvalidInput(t *testing.T) {
	catalog, order := testCatalog()
	var out bytes.Buffer

	country, _, err := New(strings.NewReader("abc\n0\n1\n"), &out, 3).Choose(context.Background(), catalog, order)
	require.NoError(t, err)
	assert.Equal(t, "Japan", country)
	assert.Equal(t, 2, strings.Count(out.String(), invalidNotice))
}

func TestChooseGivesUpAfterMaxAttempts(t *testing.T) {
	catalog, order := testCatalog()
	var out bytes.Buffer

	_, _, err := New(strings.NewReader("9\n9\n9\n1\n"), &out, 2).Choose(context.Background(), catalog, order)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Equal(t, 2, strings.Count(out.String(), invalidNotice))
}

func TestChooseLastLineWithoutNewline(t *testing.T) {
	catalog, order := testCatalog()

	country, _, err := New(strings.NewReader("1"), &bytes.Buffer{}, 1).Choose(context.Background(), catalog, order)
	require.NoError(t, err)
	assert.Equal(t, "Japan", country)
}

func TestChooseEOFAborts(t *testing.T) {
	catalog, order := testCatalog()

	_, _, err := New(strings.NewReader(""), &bytes.Buffer{}, 3).Choose(context.Background(), catalog, order)
	assert.ErrorIs(t, err, ErrAborted)

	_, _, err = New(strings.NewReader("x"), &bytes.Buffer{}, 3).Choose(context.Background(), catalog, order)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestChooseEmptyCatalog(t *testing.T) {
	_, _, err := New(strings.NewReader("1\n"), &bytes.Buffer{}, 3).Choose(context.Background(), selector.Catalog{}, nil)
	assert.Error(t, err)
}

func TestChooseCancelledWhileWaiting(t *testing.T) {
	catalog, order := testCatalog()
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, _, err := New(in, &bytes.Buffer{}, 3).Choose(ctx, catalog, order)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAborted)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Choose did not return after cancellation")
	}
}

func TestChooseAlreadyCancelled(t *testing.T) {
	catalog, order := testCatalog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, _, err := New(strings.NewReader("1\n"), &out, 3).Choose(ctx, catalog, order)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, out.String())
}

func TestChooseReusesAbandonedRead(t *testing.T) {
	catalog, order := testCatalog()
	in, w := io.Pipe()
	defer w.Close()
	p := New(in, &bytes.Buffer{}, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := p.Choose(ctx, catalog, order)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() { _, _ = w.Write([]byte("2\n")) }()

	country, _, err := p.Choose(context.Background(), catalog, order)
	require.NoError(t, err)
	assert.Equal(t, "United States", country)
}
