// Package pagination provides cursor-based page iteration for seller API
// list endpoints.
//
// The dictionary values endpoint returns at most `limit` values per call plus
// a has_next flag; the next call passes the id of the last value received as
// last_value_id. This package models that protocol as a lazy, finite
// sequence of pages:
//
//	pager := pagination.NewCursorPager(fetch, func(v Value) int64 { return v.ID })
//	for page, err := range pager.Pages(ctx) {
//		if err != nil {
//			return err
//		}
//		store(page.Items)
//	}
//
// The pager:
//   - Starts from an empty cursor on every call to Pages
//   - Advances the cursor to the last item of each page
//   - Stops after the first page reporting HasNext=false
//   - Yields ErrCursorStalled when a page is empty but claims more pages
//   - Yields the fetch error and stops on any fetch failure
package pagination
