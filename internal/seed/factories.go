package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"veritas/internal/models"
	"veritas/internal/scoring"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Post kinds.
const (
	KindText  = "text"
	KindImage = "image"
	KindVideo = "video"
)

// Distribution is the percentage split of generated post kinds.
type Distribution struct {
	Text  int
	Image int
	Video int
}

var defaultDistribution = Distribution{Text: 60, Image: 30, Video: 10}

// computeCounts splits total by d, giving rounding leftovers to text posts.
func computeCounts(total int, d Distribution) (text, image, video int) {
	sum := d.Text + d.Image + d.Video
	if sum <= 0 || total <= 0 {
		return total, 0, 0
	}
	image = total * d.Image / sum
	video = total * d.Video / sum
	text = total - image - video
	return text, image, video
}

// Verdict is a generated fact-check result.
type Verdict struct {
	Score int
	Label models.Label
}

// Factory builds domain entities with fake content.
type Factory struct {
	faker *gofakeit.Faker
	rnd   *rand.Rand
	opts  Options
}

// NewFactory creates a Factory. A zero opts.Seed seeds from the clock.
func NewFactory(opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		faker: gofakeit.New(seed),
		rnd:   rand.New(rand.NewSource(seed)),
		opts:  opts,
	}
}

// Intn returns a pseudo-random int in [0,n), 0 when n <= 0.
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.rnd.Intn(n)
}

func (f *Factory) pick(users []*models.User) *models.User {
	return users[f.rnd.Intn(len(users))]
}

func (f *Factory) sample(users []*models.User, n int) []*models.User {
	idx := f.rnd.Perm(len(users))
	out := make([]*models.User, 0, n)
	for _, i := range idx[:n] {
		out = append(out, users[i])
	}
	return out
}

// BuildUser constructs a profile with an identity-provider style opaque id.
func (f *Factory) BuildUser() *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	handle := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.faker.Number(1, 999)))
	return &models.User{
		ID:       uuid.NewString(),
		Username: handle,
		Name:     first + " " + last,
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", handle),
		Bio:      f.faker.Sentence(10),
	}
}

// BuildPost constructs an unsaved post of the given kind by author.
func (f *Factory) BuildPost(author *models.User, kind string) *models.Post {
	post := &models.Post{
		AuthorID: author.ID,
		Text:     f.faker.Paragraph(1, 3, 12, " "),
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	post.CreatedAt = time.Now().Add(
		-time.Duration(f.rnd.Intn(maxDays))*24*time.Hour -
			time.Duration(f.rnd.Intn(24))*time.Hour -
			time.Duration(f.rnd.Intn(60))*time.Minute,
	)

	switch kind {
	case KindImage:
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
		if f.rnd.Intn(3) == 0 {
			post.Text = ""
		}
	case KindVideo:
		post.VideoURL = fmt.Sprintf("https://media.example.com/posts/videos/%s.mp4", f.faker.UUID())
		post.Text = f.faker.Sentence(8)
	}
	return post
}

// BuildComment constructs an unsaved comment by author.
func (f *Factory) BuildComment(author *models.User) *models.Comment {
	return &models.Comment{
		AuthorID: author.ID,
		Text:     f.faker.Sentence(f.faker.Number(3, 15)),
	}
}

// Verdict returns a random fact-check result; ok is false for posts left
// unverified.
func (f *Factory) Verdict() (Verdict, bool) {
	if f.rnd.Intn(5) == 0 {
		return Verdict{}, false
	}
	score := scoring.Normalize(float64(f.faker.Number(0, 100)))
	return Verdict{Score: score, Label: scoring.LabelFor(score)}, true
}
