package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/mocks/usecase"
)

type URLUseCaseTestSuite struct {
	suite.Suite
	errUnknown  error
	now         time.Time
	urlRepoMock *usecase.MockUrlRepository
	idGenMock   *usecase.MockIdGenerator
	uc          *URLUseCase
}

func (suite *URLUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func (suite *URLUseCaseTestSuite) SetupSubTest() {
	suite.urlRepoMock = usecase.NewMockUrlRepository(suite.T())
	suite.idGenMock = usecase.NewMockIdGenerator(suite.T())
	suite.uc = NewURLUseCase(
		suite.urlRepoMock,
		WithIDGenerator(suite.idGenMock),
		WithClock(func() time.Time { return suite.now }),
	)
}

func (suite *URLUseCaseTestSuite) TearDownSubTest() {
	suite.urlRepoMock.AssertExpectations(suite.T())
	suite.idGenMock.AssertExpectations(suite.T())
}

func (suite *URLUseCaseTestSuite) TestShortenURL() {
	ctx := context.Background()

	suite.Run("empty original url", func() {
		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "   ")

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("empty owner", func() {
		url, existed, err := suite.uc.ShortenURL(ctx, "", "https://example.com")

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("existing url reused", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(&entity.URL{
				ShortID:     "abc123",
				OriginalURL: "https://example.com",
				OwnerID:     "u1",
			}, nil)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.NoError(err)
		suite.True(existed)
		suite.Equal("abc123", url.ShortID)
	})

	suite.Run("lookup error", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrStoreUnavailable)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("short id generation error", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.
			On("Generate").
			Once().
			Return("", suite.errUnknown)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("maximum retries error", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.
			On("Generate").
			Times(maxRetries).
			Return("abc123", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abc123", "https://example.com", "u1").
			Times(maxRetries).
			Return(nil, entity.ErrShortIDExists)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.ErrorIs(err, ErrMaxRetriesExceeded)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("retry after collision", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.On("Generate").Once().Return("taken1", nil)
		suite.idGenMock.On("Generate").Once().Return("fresh1", nil)
		suite.urlRepoMock.
			On("Save", ctx, "taken1", "https://example.com", "u1").
			Once().
			Return(nil, entity.ErrShortIDExists)
		suite.urlRepoMock.
			On("Save", ctx, "fresh1", "https://example.com", "u1").
			Once().
			Return(&entity.URL{ShortID: "fresh1", OriginalURL: "https://example.com", OwnerID: "u1"}, nil)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.NoError(err)
		suite.False(existed)
		suite.Equal("fresh1", url.ShortID)
	})

	suite.Run("concurrent insert of same pair", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.On("Generate").Once().Return("abc123", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abc123", "https://example.com", "u1").
			Once().
			Return(nil, entity.ErrOwnerURLExists)
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(&entity.URL{ShortID: "xyz789", OriginalURL: "https://example.com", OwnerID: "u1"}, nil)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.NoError(err)
		suite.True(existed)
		suite.Equal("xyz789", url.ShortID)
	})

	suite.Run("conflict without visible record", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Twice().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.On("Generate").Once().Return("abc123", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abc123", "https://example.com", "u1").
			Once().
			Return(nil, entity.ErrOwnerURLExists)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.ErrorIs(err, entity.ErrOwnerURLExists)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.On("Generate").Once().Return("abc123", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abc123", "https://example.com", "u1").
			Once().
			Return(nil, suite.errUnknown)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.False(existed)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByOwnerAndOriginalURL", ctx, "u1", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.idGenMock.On("Generate").Once().Return("abc123", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abc123", "https://example.com", "u1").
			Once().
			Return(&entity.URL{ShortID: "abc123", OriginalURL: "https://example.com", OwnerID: "u1"}, nil)

		url, existed, err := suite.uc.ShortenURL(ctx, "u1", "https://example.com")

		suite.NoError(err)
		suite.False(existed)
		suite.Equal("abc123", url.ShortID)
		suite.Equal("u1", url.OwnerID)
	})
}

func (suite *URLUseCaseTestSuite) TestResolveShortID() {
	ctx := context.Background()

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("AppendVisit", ctx, "abc123", suite.now).
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.ResolveShortID(ctx, "abc123")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("AppendVisit", ctx, "abc123", suite.now).
			Once().
			Return(&entity.URL{ShortID: "abc123", OriginalURL: "https://example.com"}, nil)

		url, err := suite.uc.ResolveShortID(ctx, "abc123")

		suite.NoError(err)
		suite.Equal("https://example.com", url.OriginalURL)
	})
}

func (suite *URLUseCaseTestSuite) TestGetURLStats() {
	ctx := context.Background()

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("RetrieveByShortID", ctx, "abc123").
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.GetURLStats(ctx, "abc123")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByShortID", ctx, "abc123").
			Once().
			Return(&entity.URL{
				ShortID: "abc123",
				Visits:  []entity.Visit{{Timestamp: suite.now}},
			}, nil)

		url, err := suite.uc.GetURLStats(ctx, "abc123")

		suite.NoError(err)
		suite.Len(url.Visits, 1)
	})
}

func (suite *URLUseCaseTestSuite) TestGetAnalytics() {
	ctx := context.Background()

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("RetrieveByShortID", ctx, "abc123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, report, err := suite.uc.GetAnalytics(ctx, "abc123")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
		suite.Nil(report)
	})

	suite.Run("success", func() {
		visits := []entity.Visit{
			{Timestamp: suite.now.Add(-10 * 24 * time.Hour)},
			{Timestamp: suite.now.Add(-2 * time.Hour)},
			{Timestamp: suite.now.Add(-time.Hour)},
		}

		suite.urlRepoMock.
			On("RetrieveByShortID", ctx, "abc123").
			Once().
			Return(&entity.URL{ShortID: "abc123", Visits: visits}, nil)

		url, report, err := suite.uc.GetAnalytics(ctx, "abc123")

		suite.NoError(err)
		suite.Equal("abc123", url.ShortID)
		suite.Equal(3, report.TotalClicks)
		suite.Len(report.Last7Days, 7)
		suite.Equal(2, report.Last7Days[6].Clicks)
		suite.Len(report.Last30Days, 30)
		suite.Equal(visits[2], report.RecentClicks[0])
		suite.Equal(suite.now, report.GeneratedAt)
	})
}

func (suite *URLUseCaseTestSuite) TestListURLs() {
	ctx := context.Background()
	urls := []entity.URL{{ShortID: "abc123"}, {ShortID: "def456"}}

	suite.Run("owner urls", func() {
		suite.urlRepoMock.On("ListByOwner", ctx, "u1").Once().Return(urls, nil)

		got, err := suite.uc.ListOwnerURLs(ctx, "u1")

		suite.NoError(err)
		suite.Equal(urls, got)
	})

	suite.Run("all urls error", func() {
		suite.urlRepoMock.On("ListAll", ctx).Once().Return(nil, suite.errUnknown)

		got, err := suite.uc.ListAllURLs(ctx)

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(got)
	})

	suite.Run("admin sees all", func() {
		suite.urlRepoMock.On("ListAll", ctx).Once().Return(urls, nil)

		got, err := suite.uc.ListURLsFor(ctx, &entity.User{ID: "a1", Role: entity.RoleAdmin})

		suite.NoError(err)
		suite.Equal(urls, got)
	})

	suite.Run("user sees own", func() {
		suite.urlRepoMock.On("ListByOwner", ctx, "u1").Once().Return(urls[:1], nil)

		got, err := suite.uc.ListURLsFor(ctx, &entity.User{ID: "u1", Role: entity.RoleUser})

		suite.NoError(err)
		suite.Equal(urls[:1], got)
	})

	suite.Run("no user", func() {
		got, err := suite.uc.ListURLsFor(ctx, nil)

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.Nil(got)
	})
}

func TestURLUseCase(t *testing.T) {
	suite.Run(t, new(URLUseCaseTestSuite))
}

func TestNewURLUseCase_Defaults(t *testing.T) {
	repo := usecase.NewMockUrlRepository(t)
	repo.
		On("RetrieveByOwnerAndOriginalURL", mock.Anything, "u1", "https://example.com").
		Once().
		Return(nil, entity.ErrURLNotFound)
	repo.
		On("Save", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "u1").
		Once().
		Return(func(_ context.Context, shortID, originalURL, ownerID string) (*entity.URL, error) {
			return &entity.URL{ShortID: shortID, OriginalURL: originalURL, OwnerID: ownerID}, nil
		})

	uc := NewURLUseCase(repo)

	url, existed, err := uc.ShortenURL(context.Background(), "u1", "https://example.com")
	if err != nil {
		t.Fatalf("ShortenURL: %v", err)
	}

	if existed || len(url.ShortID) != 6 {
		t.Fatalf("unexpected result: existed=%v short_id=%q", existed, url.ShortID)
	}
}
