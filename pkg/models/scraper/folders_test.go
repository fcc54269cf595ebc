package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/mailscrape/weboutlook/pkg/mock"
)

func TestGetFolderSinglePage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML", "inbox/b.EML"}, "1 of 1", ""), nil)

	service := newTestScraper(t, mockBrowser)

	ids, err := service.GetFolder("inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.EML", "inbox/b.EML"}, ids)

	// Second call is served from the cache; gomock would fail on any
	// further browser traffic.
	again, err := service.GetFolder("inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, ids, again)
}

func TestGetFolderNameIsCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML"}, "1 of 1", ""), nil)

	service := newTestScraper(t, mockBrowser)

	_, err := service.GetFolder("inbox", false)
	assert.NoError(t, err)

	ids, err := service.GetFolder("Inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.EML"}, ids)
}

func TestGetFolderEscapesFolderName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "sent%20items/?Cmd=contents"
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, nil, "1 of 1", ""), nil)

	service := newTestScraper(t, mockBrowser)

	_, err := service.GetFolder("sent items", false)
	assert.NoError(t, err)
}

func TestGetFolderEmptyListingIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "drafts/?Cmd=contents"
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, nil, "1 of 1", ""), nil)

	service := newTestScraper(t, mockBrowser)

	ids, err := service.GetFolder("drafts", false)
	assert.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	// The empty listing counts as a cache hit, not a miss.
	again, err := service.GetFolder("drafts", false)
	assert.NoError(t, err)
	assert.NotNil(t, again)
	assert.Empty(t, again)
}

func TestGetFolderPaginationStopsOnRepeat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	page2URL := listURL + "&Page=2"
	page3URL := listURL + "&Page=3"
	page4URL := listURL + "&Page=4"

	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/1.EML", "inbox/2.EML"}, "1 of 3", page2URL), nil)
	mockBrowser.EXPECT().
		Open(page2URL).
		Return(mock.ListingPage(page2URL, testBase, []string{"inbox/3.EML", "inbox/4.EML"}, "2 of 3", page3URL), nil)
	mockBrowser.EXPECT().
		Open(page3URL).
		Return(mock.ListingPage(page3URL, testBase, []string{"inbox/5.EML"}, "3 of 3", page4URL), nil)
	// Out-of-range pages serve the last page again; the repeat ends the walk.
	mockBrowser.EXPECT().
		Open(page4URL).
		Return(mock.ListingPage(page4URL, testBase, []string{"inbox/5.EML"}, "3 of 3", page4URL), nil)

	service := newTestScraper(t, mockBrowser)

	ids, err := service.GetFolder("inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/1.EML", "inbox/2.EML", "inbox/3.EML", "inbox/4.EML", "inbox/5.EML"}, ids)
}

func TestGetFolderDeduplicatesAcrossPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	page2URL := listURL + "&Page=2"
	page3URL := listURL + "&Page=3"

	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML", "inbox/b.EML"}, "1 of 2", page2URL), nil)
	// A message arriving mid-walk shifts rows, so b shows up twice.
	mockBrowser.EXPECT().
		Open(page2URL).
		Return(mock.ListingPage(page2URL, testBase, []string{"inbox/b.EML", "inbox/c.EML"}, "2 of 2", page3URL), nil)
	mockBrowser.EXPECT().
		Open(page3URL).
		Return(mock.ListingPage(page3URL, testBase, []string{"inbox/b.EML", "inbox/c.EML"}, "2 of 2", page3URL), nil)

	service := newTestScraper(t, mockBrowser)

	ids, err := service.GetFolder("inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.EML", "inbox/b.EML", "inbox/c.EML"}, ids)
}

func TestGetFolderMissingNextPageLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML"}, "1 of 2", ""), nil)

	service := newTestScraper(t, mockBrowser)

	_, err := service.GetFolder("inbox", false)

	var retrievalErr *RetrievalError
	assert.ErrorAs(t, err, &retrievalErr)
	assert.Contains(t, err.Error(), "Next Page")
}

func TestGetFolderRefreshBypassesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	first := mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML"}, "1 of 1", ""), nil)
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML", "inbox/b.EML"}, "1 of 1", ""), nil).
		After(first)

	service := newTestScraper(t, mockBrowser)

	ids, err := service.GetFolder("inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.EML"}, ids)

	ids, err = service.GetFolder("inbox", true)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.EML", "inbox/b.EML"}, ids)

	// The refreshed listing replaced the cached one.
	ids, err = service.GetFolder("inbox", false)
	assert.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.EML", "inbox/b.EML"}, ids)
}

func TestGetFolderMidWalkFailureLeavesCacheEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	boom := errors.New("connection reset")
	mockBrowser := mock.NewMockBrowser(ctrl)
	expectLogin(mockBrowser)

	listURL := testBase + "inbox/?Cmd=contents"
	page2URL := listURL + "&Page=2"
	mockBrowser.EXPECT().
		Open(listURL).
		Return(mock.ListingPage(listURL, testBase, []string{"inbox/a.EML"}, "1 of 2", page2URL), nil)
	mockBrowser.EXPECT().Open(page2URL).Return(nil, boom)

	service := newTestScraper(t, mockBrowser)

	_, err := service.GetFolder("inbox", false)
	assert.ErrorIs(t, err, boom)

	_, ok := service.cache.LookupFolder("inbox")
	assert.False(t, ok)
}
