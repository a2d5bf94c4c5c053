// Package seed fills a development database with demo users, snippets,
// likes, comments and forks. It goes through the services, so seeded data
// obeys the same slug, counter and activity rules as real traffic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/service"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Options controls how much data Run creates.
type Options struct {
	Users           int
	SnippetsPerUser int
	LikesPerSnippet int
	CommentsPerUser int
	ForksPerUser    int
	Seed            int64 // 0 picks a random seed
}

// Result counts what Run created.
type Result struct {
	Users    int
	Snippets int
	Likes    int
	Comments int
	Forks    int
}

// Seeder creates demo data through the services.
type Seeder struct {
	auth     *service.AuthService
	snippets *service.SnippetService
	social   *service.SocialService
	logger   *slog.Logger
}

// New creates a Seeder.
func New(auth *service.AuthService, snippets *service.SnippetService, social *service.SocialService, logger *slog.Logger) *Seeder {
	return &Seeder{auth: auth, snippets: snippets, social: social, logger: logger}
}

var invalidUsernameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Run creates opts.Users accounts, each with opts.SnippetsPerUser snippets,
// then spreads likes, comments and forks across them.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	faker := gofakeit.New(opts.Seed)
	res := &Result{}

	users := make([]*model.User, 0, opts.Users)
	for len(users) < opts.Users {
		name := username(faker)
		created, err := s.auth.Signup(ctx, name, faker.Email(), DemoPassword)
		if errors.Is(err, apperror.ErrValidation) {
			s.logger.Debug("skipping username", slog.String("username", name), slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed: creating user: %w", err)
		}
		users = append(users, created.User)
		res.Users++
	}

	// Only public snippets are reachable by other users.
	var snippets []*model.Snippet
	for _, u := range users {
		for i := 0; i < opts.SnippetsPerUser; i++ {
			sn, err := s.snippets.Save(ctx, u.ID, snippetInput(faker))
			if err != nil {
				return res, fmt.Errorf("seed: creating snippet: %w", err)
			}
			res.Snippets++
			if sn.IsPublic {
				snippets = append(snippets, sn)
			}
		}
	}
	if len(snippets) == 0 {
		return res, nil
	}

	likers := make([]int, len(users))
	for i := range likers {
		likers[i] = i
	}
	for _, sn := range snippets {
		faker.ShuffleInts(likers)
		for _, i := range likers[:min(opts.LikesPerSnippet, len(users))] {
			if _, err := s.social.ToggleLike(ctx, users[i].ID, sn.Slug); err != nil {
				return res, fmt.Errorf("seed: liking: %w", err)
			}
			res.Likes++
		}
	}

	for _, u := range users {
		for i := 0; i < opts.CommentsPerUser; i++ {
			target := snippets[faker.Number(0, len(snippets)-1)]
			if _, err := s.social.AddComment(ctx, u.ID, target.Slug, faker.Sentence(faker.Number(4, 12))); err != nil {
				return res, fmt.Errorf("seed: commenting: %w", err)
			}
			res.Comments++
		}
		for i := 0; i < opts.ForksPerUser; i++ {
			target := snippets[faker.Number(0, len(snippets)-1)]
			if _, err := s.snippets.Fork(ctx, u.ID, target.Slug); err != nil {
				return res, fmt.Errorf("seed: forking: %w", err)
			}
			res.Forks++
		}
	}

	s.logger.Info("seed complete",
		slog.Int("users", res.Users),
		slog.Int("snippets", res.Snippets),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
		slog.Int("forks", res.Forks),
	)
	return res, nil
}

func username(f *gofakeit.Faker) string {
	name := invalidUsernameChars.ReplaceAllString(f.Username(), "")
	name = fmt.Sprintf("%s%d", name, f.Number(100, 999))
	if len(name) > 30 {
		name = name[len(name)-30:]
	}
	return name
}

var shapes = []string{"border-radius: 50%", "border-radius: 12px", "transform: rotate(45deg)", "clip-path: polygon(50% 0, 100% 100%, 0 100%)"}

func snippetInput(f *gofakeit.Faker) service.SaveInput {
	env := "2d"
	js := ""
	html := `<div class="shape"></div>`
	css := fmt.Sprintf(`body { display: grid; place-items: center; height: 100vh; margin: 0; background: %s; }
.shape { width: 120px; height: 120px; background: %s; %s; animation: pulse %ds ease-in-out infinite alternate; }
@keyframes pulse { to { transform: scale(1.3); } }`,
		f.HexColor(), f.HexColor(), f.RandomString(shapes), f.Number(1, 4))

	if f.Number(0, 3) == 0 {
		env = "3d"
		html = ""
		css = "body { margin: 0; overflow: hidden; }"
		js = fmt.Sprintf(`const scene = new THREE.Scene();
const camera = new THREE.PerspectiveCamera(75, innerWidth / innerHeight, 0.1, 1000);
const renderer = new THREE.WebGLRenderer({antialias: true});
renderer.setSize(innerWidth, innerHeight);
document.body.appendChild(renderer.domElement);
const cube = new THREE.Mesh(new THREE.BoxGeometry(), new THREE.MeshNormalMaterial());
scene.add(cube);
camera.position.z = %d;
(function animate() {
  requestAnimationFrame(animate);
  cube.rotation.x += 0.01;
  cube.rotation.y += 0.01;
  renderer.render(scene, camera);
})();`, f.Number(2, 4))
	}

	tags := []string{f.RandomString(service.PopularTags)}
	if env == "3d" {
		tags = append(tags, "3d")
	}

	public := f.Number(0, 9) > 0
	return service.SaveInput{
		Title:       strings.TrimSuffix(f.HackerPhrase(), "!"),
		Description: f.Sentence(f.Number(6, 14)),
		HTMLCode:    html,
		CSSCode:     css,
		JSCode:      js,
		Environment: env,
		Tags:        tags,
		IsPublic:    &public,
	}
}
