package joke

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Leryan/flobot/internal/storage"
)

// ErrNoJoke is returned when no provider had a joke to tell.
var ErrNoJoke = errors.New("no joke found :/")

// Provider returns one random joke for a team.
type Provider interface {
	Random(ctx context.Context, teamID string) (string, error)
}

// Select asks its providers in turn, starting from a random one, and
// returns the first joke found.
type Select struct {
	providers []Provider
	intn      func(n int) int
}

func NewSelect(providers ...Provider) *Select {
	return &Select{providers: providers, intn: rand.IntN}
}

func (s *Select) Random(ctx context.Context, teamID string) (string, error) {
	n := len(s.providers)
	if n == 0 {
		return "", ErrNoJoke
	}
	var errs []error
	start := s.intn(n)
	for i := range n {
		joke, err := s.providers[(start+i)%n].Random(ctx, teamID)
		if err == nil {
			return joke, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(append([]error{ErrNoJoke}, errs...)...)
}

// Stored picks among the jokes saved with "!blague <text>".
type Stored struct {
	store storage.Jokes
}

func NewStored(store storage.Jokes) Stored { return Stored{store: store} }

func (s Stored) Random(ctx context.Context, teamID string) (string, error) {
	jokes, err := s.store.ListJokes(ctx, teamID)
	if err != nil {
		return "", err
	}
	if len(jokes) == 0 {
		return "", errors.New("no joke in storage")
	}
	return jokes[rand.IntN(len(jokes))].Text, nil
}

// URLs answers with a random line of a file, usually links to images.
type URLs struct {
	urls []string
}

// LoadURLs reads one URL per line, skipping blank lines and # comments.
func LoadURLs(path string) (URLs, error) {
	f, err := os.Open(path)
	if err != nil {
		return URLs{}, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return URLs{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(urls) == 0 {
		return URLs{}, fmt.Errorf("%s: no url", path)
	}
	return URLs{urls: urls}, nil
}

func (u URLs) Random(context.Context, string) (string, error) {
	if len(u.urls) == 0 {
		return "", errors.New("no url")
	}
	return u.urls[rand.IntN(len(u.urls))], nil
}

const (
	DefaultBlaguesAPIURL = "https://www.blagues-api.fr/api/random"
	DefaultBadJokesURL   = "https://random-ize.com/bad-jokes/bad-jokes-f.php"
	DefaultTimeout       = 5 * time.Second

	maxBody = 64 << 10
)

// BlaguesAPI fetches a joke and its answer from blagues-api.fr.
type BlaguesAPI struct {
	url   string
	token string
	http  *http.Client
}

func NewBlaguesAPI(url, token string, timeout time.Duration) *BlaguesAPI {
	if strings.TrimSpace(url) == "" {
		url = DefaultBlaguesAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BlaguesAPI{url: url, token: token, http: &http.Client{Timeout: timeout}}
}

func (b *BlaguesAPI) Random(ctx context.Context, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Accept", "application/json")

	body, err := fetch(b.http, req)
	if err != nil {
		return "", fmt.Errorf("blagues-api: %w", err)
	}
	var out struct {
		Joke   string `json:"joke"`
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("blagues-api: decode: %w", err)
	}
	if strings.TrimSpace(out.Joke) == "" {
		return "", errors.New("blagues-api: empty joke")
	}
	return punchline(out.Joke, out.Answer), nil
}

var reBadJoke = regexp.MustCompile(`(?s)<font[^>]*>(.*?)<br><br>(.*?)</font>`)

// BadJokes scrapes the question and answer out of random-ize.com.
type BadJokes struct {
	url  string
	http *http.Client
}

func NewBadJokes(url string, timeout time.Duration) *BadJokes {
	if strings.TrimSpace(url) == "" {
		url = DefaultBadJokesURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BadJokes{url: url, http: &http.Client{Timeout: timeout}}
}

func (b *BadJokes) Random(ctx context.Context, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html, */*; q=0.01")
	req.Header.Set("Referer", "https://random-ize.com/bad-jokes/")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	body, err := fetch(b.http, req)
	if err != nil {
		return "", fmt.Errorf("bad-jokes: %w", err)
	}
	m := reBadJoke.FindSubmatch(body)
	if m == nil {
		return "", errors.New("bad-jokes: no joke in page")
	}
	return punchline(strings.TrimSpace(string(m[1])), strings.TrimSpace(string(m[2]))), nil
}

func fetch(c *http.Client, req *http.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

func punchline(joke, answer string) string {
	return joke + "\n…\n…\n" + answer
}
