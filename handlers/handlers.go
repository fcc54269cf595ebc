package handlers

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/mailscrape/weboutlook/pkg/base"
	"github.com/mailscrape/weboutlook/pkg/models/scraper"
	"github.com/mailscrape/weboutlook/pkg/utils"
)

// Home renders the home view
func Home(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"Title": "weboutlook",
	})
}

// About renders the about view
func About(c *fiber.Ctx) error {
	return c.Render("about", nil)
}

// NotFound renders the 404 view
func NotFound(c *fiber.Ctx) error {
	return c.Status(404).Render("404", nil)
}

// Folders renders the folder snapshot written by the snapshot command.
func Folders(c *fiber.Ctx) error {
	fileMgr, ok := c.Locals("fileMgr").(utils.FileManager)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not retrieve file manager")
	}

	data, err := fileMgr.ReadFile(base.FolderListFile)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(
			fmt.Sprintf("Reading folder snapshot error %+v", err),
		)
	}
	defer fileMgr.Close() //nolint:errcheck

	listings := make(map[string]base.SerializedListing)

	err = json.Unmarshal(data, &listings)
	if err != nil {
		return errors.Errorf("unable to unmarshal folder snapshot %+v", err)
	}

	return c.Render("folders/index", fiber.Map{
		"Title":   "Folders",
		"Folders": listings,
	})
}

// Listing scrapes one folder and renders its message ids. The folder name in
// the path is percent-encoded; the scraper wants the plain name.
func Listing(c *fiber.Ctx) error {
	scr, ok := c.Locals("scraper").(scraper.OutlookWebScraper)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not retrieve scraper")
	}

	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(
			fmt.Sprintf("Bad folder name %+v", err),
		)
	}

	ids, err := scr.GetFolder(name, c.QueryBool("refresh"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(
			fmt.Sprintf("Scraping folder error %+v", err),
		)
	}

	return c.Render("folders/show", fiber.Map{
		"Title":      name,
		"Folder":     name,
		"MessageIds": ids,
	})
}

// Message returns the raw scraped source of one message. Message ids are URL
// path fragments already, so the wildcard is passed through unescaped.
func Message(c *fiber.Ctx) error {
	scr, ok := c.Locals("scraper").(scraper.OutlookWebScraper)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not retrieve scraper")
	}

	id := c.Params("*")
	body, err := scr.GetMessage(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(
			fmt.Sprintf("Scraping message error %+v", err),
		)
	}

	c.Type("txt")
	return c.Send(body)
}

// DeleteMessage deletes the posted message id and returns to its folder view.
func DeleteMessage(c *fiber.Ctx) error {
	scr, ok := c.Locals("scraper").(scraper.OutlookWebScraper)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not retrieve scraper")
	}

	id := c.FormValue("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing message id")
	}

	if _, err := scr.DeleteMessage(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(
			fmt.Sprintf("Deleting message error %+v", err),
		)
	}

	folder := c.FormValue("folder", base.InboxFolder)
	return c.Redirect("/folders/" + url.PathEscape(folder))
}
