package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/amishk599/jobradar/internal/annotate"
	"github.com/amishk599/jobradar/internal/dom"
	"github.com/amishk599/jobradar/internal/extract"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/pagination"
	"github.com/amishk599/jobradar/internal/watcher"
)

// LinkedInOrigin matches linkedin.com and its country subdomains.
const LinkedInOrigin = `^https?://([a-z0-9-]+\.)*linkedin\.com$`

var (
	linkedInViewID    = regexp.MustCompile(`/jobs/view/(?:[^/?#]*-)?(\d+)`)
	linkedInCurrentID = regexp.MustCompile(`[?&]currentJobId=(\d+)`)
	linkedInURN       = regexp.MustCompile(`jobPosting:(\d+)`)
)

var linkedInContainers = []string{
	".scaffold-layout__list",
	".jobs-search-results-list",
	"ul.jobs-search__results-list",
}

var linkedInItems = []string{
	"li[data-occludable-job-id]",
	"div[data-job-id]",
	"li.jobs-search-results__list-item",
	"ul.jobs-search__results-list > li",
}

var linkedInPanels = []string{
	".jobs-description__content",
	".jobs-description-content__text",
	"#job-details",
	".jobs-search__job-details--container",
}

var linkedInPagination = []string{
	".jobs-search-pagination",
	".artdeco-pagination",
}

// LinkedInLayout is the extraction layout of the LinkedIn job search page.
func LinkedInLayout() extract.Layout {
	return extract.Layout{
		ID: []extract.Strategy{
			extract.Attr("", "data-occludable-job-id"),
			extract.Attr("", "data-job-id"),
			extract.AttrPattern("a[href*='/jobs/view/']", "href", linkedInViewID),
			extract.AttrPattern("a[href*='currentJobId=']", "href", linkedInCurrentID),
			extract.Attr("[data-job-id]", "data-job-id"),
			extract.AttrPattern("", "data-entity-urn", linkedInURN),
			extract.AttrPattern("[data-entity-urn]", "data-entity-urn", linkedInURN),
		},
		Title: []extract.Strategy{
			extract.Text(".job-card-list__title--link strong"),
			extract.Text(".job-card-list__title"),
			extract.Text(".job-card-container__link"),
			extract.Text(".base-search-card__title"),
			extract.AnyText("a[href*='/jobs/view/']"),
		},
		Company: []extract.Strategy{
			extract.Text(".artdeco-entity-lockup__subtitle"),
			extract.Text(".job-card-container__primary-description"),
			extract.Text(".job-card-container__company-name"),
			extract.Text(".base-search-card__subtitle"),
		},
		Location: []extract.Strategy{
			extract.Text(".job-card-container__metadata-item"),
			extract.Text(".artdeco-entity-lockup__caption li"),
			extract.Text(".job-search-card__location"),
		},
		Salary: []extract.Strategy{
			extract.Text(".job-card-container__metadata-item--salary"),
			extract.Text(".job-search-card__salary-info"),
		},
		Link: []extract.Strategy{
			extract.Attr("a[href*='/jobs/view/']", "href"),
			extract.Attr("a.base-card__full-link", "href"),
		},
		Activate: []string{
			"a.job-card-list__title--link",
			"a.job-card-container__link",
			"a[href*='/jobs/view/']",
		},
		Panel:   linkedInPanels,
		PanelID: extract.Attr("", "data-job-id"),
	}
}

// LinkedInPagination lists the next-page controls in rank order.
func LinkedInPagination() []pagination.Strategy {
	return []pagination.Strategy{
		{Container: ".jobs-search-pagination", Selector: "button.jobs-search-pagination__button--next"},
		{Container: ".artdeco-pagination", Selector: "button[aria-label='View next page']"},
		{Container: ".artdeco-pagination", Selector: "li.active + li button"},
		{Container: "", Selector: "button[aria-label='Next']"},
	}
}

// LinkedIn is the SiteAdapter for the LinkedIn job search layout.
type LinkedIn struct {
	page      dom.Page
	extractor *extract.Extractor
	crawler   *pagination.Crawler
	annotator *annotate.Annotator
	logger    *slog.Logger
}

// NewLinkedIn builds the LinkedIn adapter for page.
func NewLinkedIn(page dom.Page, opts Options, logger *slog.Logger) SiteAdapter {
	return &LinkedIn{
		page:      page,
		extractor: extract.New(page, LinkedInLayout(), opts.Extract, logger),
		crawler:   pagination.New(page, LinkedInPagination(), opts.Settle, logger),
		annotator: annotate.New(page),
		logger:    logger,
	}
}

func (a *LinkedIn) Name() string { return "linkedin" }

// DetectSite checks for the job search list structure rather than the URL,
// so saved pages work too.
func (a *LinkedIn) DetectSite(ctx context.Context) (bool, error) {
	root, err := a.page.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("linkedin detect: %w", err)
	}
	if _, ok := root.First(linkedInContainers...); ok {
		return true, nil
	}
	return len(findItems(root, nil, linkedInItems)) > 0, nil
}

func (a *LinkedIn) Regions() watcher.Regions {
	return watcher.Regions{
		Listings:    linkedInContainers,
		Description: linkedInPanels,
		Pagination:  linkedInPagination,
	}
}

// FindListings returns the listing cards of the current page in page order.
func (a *LinkedIn) FindListings(ctx context.Context) ([]dom.Node, error) {
	root, err := a.page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("linkedin listings: %w", err)
	}
	items := findItems(root, linkedInContainers, linkedInItems)
	a.logger.Debug("listings found", "count", len(items))
	return items, nil
}

func (a *LinkedIn) ListingID(item dom.Node) string {
	return a.extractor.ID(item)
}

func (a *LinkedIn) Extract(ctx context.Context, item dom.Node) (model.Listing, error) {
	return a.extractor.Extract(ctx, item)
}

func (a *LinkedIn) FindNextPage(ctx context.Context) (dom.Node, bool, error) {
	return a.crawler.FindNext(ctx)
}

func (a *LinkedIn) AdvancePage(ctx context.Context, control dom.Node) error {
	return a.crawler.Advance(ctx, control)
}

func (a *LinkedIn) Render(ctx context.Context, item dom.Node, entry model.CacheEntry) error {
	if err := a.annotator.Render(ctx, item, entry); err != nil {
		return fmt.Errorf("linkedin render %s: %w", entry.ID, err)
	}
	return nil
}
