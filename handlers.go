package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

/*** Public ***/

type DrawResponse struct {
	Seed   int64   `json:"seed"`
	Quests []Quest `json:"quests"`
}

// Draw picks random quests. count defaults to 10; seed makes the draw
// reproducible and is echoed back either way.
func Draw(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		count := defaultDrawCount
		if s := c.Query("count"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				badRequest(c, "count must be a positive integer")
				return
			}
			count = n
		}
		seed := time.Now().UnixNano()
		if s := c.Query("seed"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				badRequest(c, "seed must be an integer")
				return
			}
			seed = n
		}

		var (
			quests []Quest
			err    error
		)
		if catID := c.Query("categoryId"); catID != "" {
			quests, err = store.ListQuestsByCategory(c.Request.Context(), catID)
		} else {
			quests, err = store.ListQuests(c.Request.Context())
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, DrawResponse{Seed: seed, Quests: drawQuests(quests, count, seed)})
	}
}

func ListCategories(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := store.ListCategories(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cats)
	}
}

/*** Admin: quests ***/

// listQuests reads quests for the admin list. Versioned stores answer with
// the version of the same read.
func listQuests(c *gin.Context, store QuestStore, catID string) ([]Quest, string, error) {
	ctx := c.Request.Context()
	if v, ok := store.(Versioned); ok {
		quests, version, err := v.QuestsWithVersion(ctx)
		if err != nil || catID == "" {
			return quests, version, err
		}
		return questsInCategory(quests, catID), version, nil
	}
	if catID != "" {
		quests, err := store.ListQuestsByCategory(ctx, catID)
		return quests, "", err
	}
	quests, err := store.ListQuests(ctx)
	return quests, "", err
}

func ListQuests(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		quests, version, err := listQuests(c, store, strings.TrimSpace(c.Query("categoryId")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		setETag(c, version)
		c.JSON(http.StatusOK, searchQuests(quests, c.Query("q")))
	}
}

func GetQuest(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := store.GetQuest(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// bindQuestInputs accepts either a single quest object or an array of them.
func bindQuestInputs(c *gin.Context) ([]QuestInput, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "bad request")
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var arr []QuestInput
		if err := json.Unmarshal(raw, &arr); err != nil {
			badRequest(c, "invalid JSON array")
			return nil, false
		}
		return arr, true
	}
	var one QuestInput
	if err := json.Unmarshal(raw, &one); err != nil {
		badRequest(c, "invalid JSON object")
		return nil, false
	}
	return []QuestInput{one}, true
}

func CreateQuests(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		inputs, ok := bindQuestInputs(c)
		if !ok || !checkIfMatch(c, store) {
			return
		}
		quests, err := store.CreateQuests(c.Request.Context(), inputs...)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, quests)
	}
}

func UpdateQuest(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in QuestInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "bad request")
			return
		}
		if !checkIfMatch(c, store) {
			return
		}
		q, err := store.UpdateQuest(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

func DeleteQuest(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checkIfMatch(c, store) {
			return
		}
		if err := store.DeleteQuest(c.Request.Context(), c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

/*** Admin: categories ***/

func ListAdminCategories(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			cats    []Category
			version string
			err     error
		)
		if v, ok := store.(Versioned); ok {
			cats, version, err = v.CategoriesWithVersion(c.Request.Context())
		} else {
			cats, err = store.ListCategories(c.Request.Context())
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		setETag(c, version)
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			filtered := cats[:0:0]
			for _, cat := range cats {
				if strings.Contains(strings.ToLower(cat.Name), strings.ToLower(q)) {
					filtered = append(filtered, cat)
				}
			}
			cats = filtered
		}
		c.JSON(http.StatusOK, cats)
	}
}

func GetCategory(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := store.GetCategory(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func CreateCategory(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in CategoryInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "bad request")
			return
		}
		if !checkIfMatch(c, store) {
			return
		}
		cat, err := store.CreateCategory(c.Request.Context(), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}

func UpdateCategory(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in CategoryInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "bad request")
			return
		}
		if !checkIfMatch(c, store) {
			return
		}
		cat, err := store.UpdateCategory(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func DeleteCategory(store QuestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checkIfMatch(c, store) {
			return
		}
		if err := store.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
